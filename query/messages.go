package query

import (
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

const (
	TypeGetOrder          = "reconcile.query.order.get"
	TypeListOrders        = "reconcile.query.order.list"
	TypeListPaymentEvents = "reconcile.query.payment_event.list"
	TypeListAudit         = "reconcile.query.audit.list"
	TypeCanDeliver        = "reconcile.query.order.can_deliver"
)

type GetOrderMessage struct {
	OrderRef string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	return requireOrderRef(m.OrderRef)
}

type ListOrdersMessage struct {
	Filter core.OrderFilter
}

func (ListOrdersMessage) Type() string { return TypeListOrders }

func (m ListOrdersMessage) Validate() error {
	if strings.TrimSpace(m.Filter.TenantID) == "" {
		return core.NewFieldError("query", "tenant_id", "tenant id is required")
	}
	if m.Filter.Status != "" {
		if _, ok := core.ParseOrderStatus(string(m.Filter.Status)); !ok {
			return core.NewFieldError("query", "status", "status is not in the order status vocabulary")
		}
	}
	if m.Filter.Limit < 0 || m.Filter.Offset < 0 {
		return core.NewFieldError("query", "limit", "limit and offset must not be negative")
	}
	return nil
}

type ListPaymentEventsMessage struct {
	OrderRef string
}

func (ListPaymentEventsMessage) Type() string { return TypeListPaymentEvents }

func (m ListPaymentEventsMessage) Validate() error {
	return requireOrderRef(m.OrderRef)
}

type ListAuditMessage struct {
	Filter core.AuditFilter
}

func (ListAuditMessage) Type() string { return TypeListAudit }

func (m ListAuditMessage) Validate() error {
	if strings.TrimSpace(m.Filter.TenantID) == "" {
		return core.NewFieldError("query", "tenant_id", "tenant id is required")
	}
	return nil
}

type CanDeliverMessage struct {
	OrderRef string
}

func (CanDeliverMessage) Type() string { return TypeCanDeliver }

func (m CanDeliverMessage) Validate() error {
	return requireOrderRef(m.OrderRef)
}

func requireOrderRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return core.NewFieldError("query", "order_ref", "order reference is required")
	}
	return nil
}
