package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/core"
)

var (
	_ gocmd.Querier[GetOrderMessage, core.Order]                   = (*GetOrderQuery)(nil)
	_ gocmd.Querier[ListOrdersMessage, []core.Order]               = (*ListOrdersQuery)(nil)
	_ gocmd.Querier[ListPaymentEventsMessage, []core.PaymentEvent] = (*ListPaymentEventsQuery)(nil)
	_ gocmd.Querier[ListAuditMessage, []core.AuditEntry]           = (*ListAuditQuery)(nil)
	_ gocmd.Querier[CanDeliverMessage, bool]                       = (*CanDeliverQuery)(nil)
	_ OrderReader                                                  = (*core.Service)(nil)
	_ DeliveryReader                                               = (*core.Service)(nil)
)
