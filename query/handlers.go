package query

import (
	"context"

	"github.com/goliatone/go-reconcile/core"
)

type OrderReader interface {
	GetOrder(ctx context.Context, orderRef string) (core.Order, error)
	ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error)
	ListPaymentEvents(ctx context.Context, orderRef string) ([]core.PaymentEvent, error)
	ListAudit(ctx context.Context, filter core.AuditFilter) ([]core.AuditEntry, error)
}

type DeliveryReader interface {
	CanDeliver(ctx context.Context, orderRef string) (bool, error)
}

type GetOrderQuery struct {
	reader OrderReader
}

func NewGetOrderQuery(reader OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, core.NewMissingDependencyError("query", "order reader")
	}
	return q.reader.GetOrder(ctx, msg.OrderRef)
}

type ListOrdersQuery struct {
	reader OrderReader
}

func NewListOrdersQuery(reader OrderReader) *ListOrdersQuery {
	return &ListOrdersQuery{reader: reader}
}

func (q *ListOrdersQuery) Query(ctx context.Context, msg ListOrdersMessage) ([]core.Order, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewMissingDependencyError("query", "order reader")
	}
	return q.reader.ListOrders(ctx, msg.Filter)
}

type ListPaymentEventsQuery struct {
	reader OrderReader
}

func NewListPaymentEventsQuery(reader OrderReader) *ListPaymentEventsQuery {
	return &ListPaymentEventsQuery{reader: reader}
}

func (q *ListPaymentEventsQuery) Query(ctx context.Context, msg ListPaymentEventsMessage) ([]core.PaymentEvent, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewMissingDependencyError("query", "order reader")
	}
	return q.reader.ListPaymentEvents(ctx, msg.OrderRef)
}

type ListAuditQuery struct {
	reader OrderReader
}

func NewListAuditQuery(reader OrderReader) *ListAuditQuery {
	return &ListAuditQuery{reader: reader}
}

func (q *ListAuditQuery) Query(ctx context.Context, msg ListAuditMessage) ([]core.AuditEntry, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewMissingDependencyError("query", "order reader")
	}
	return q.reader.ListAudit(ctx, msg.Filter)
}

type CanDeliverQuery struct {
	reader DeliveryReader
}

func NewCanDeliverQuery(reader DeliveryReader) *CanDeliverQuery {
	return &CanDeliverQuery{reader: reader}
}

func (q *CanDeliverQuery) Query(ctx context.Context, msg CanDeliverMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, core.NewMissingDependencyError("query", "delivery reader")
	}
	return q.reader.CanDeliver(ctx, msg.OrderRef)
}
