package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-reconcile/core"
)

func TestQueries_DelegateToReader(t *testing.T) {
	reader := &stubOrderReader{
		order:  core.Order{Ref: "TKZ-2024-000001", TenantID: "G1"},
		orders: []core.Order{{Ref: "TKZ-2024-000001"}, {Ref: "TKZ-2024-000002"}},
		events: []core.PaymentEvent{{OrderRef: "TKZ-2024-000001", Status: "completed"}},
		audit:  []core.AuditEntry{{Action: core.AuditActionOrderCreate}},
	}
	ctx := context.Background()

	order, err := NewGetOrderQuery(reader).Query(ctx, GetOrderMessage{OrderRef: "TKZ-2024-000001"})
	if err != nil || order.TenantID != "G1" {
		t.Fatalf("get order: %+v %v", order, err)
	}
	orders, err := NewListOrdersQuery(reader).Query(ctx, ListOrdersMessage{Filter: core.OrderFilter{TenantID: "G1", Limit: 5}})
	if err != nil || len(orders) != 2 {
		t.Fatalf("list orders: %+v %v", orders, err)
	}
	if reader.lastFilter.Limit != 5 {
		t.Fatalf("expected filter forwarded, got %+v", reader.lastFilter)
	}
	events, err := NewListPaymentEventsQuery(reader).Query(ctx, ListPaymentEventsMessage{OrderRef: "TKZ-2024-000001"})
	if err != nil || len(events) != 1 {
		t.Fatalf("list events: %+v %v", events, err)
	}
	entries, err := NewListAuditQuery(reader).Query(ctx, ListAuditMessage{Filter: core.AuditFilter{TenantID: "G1"}})
	if err != nil || len(entries) != 1 {
		t.Fatalf("list audit: %+v %v", entries, err)
	}
	deliverable, err := NewCanDeliverQuery(stubDeliveryReader{allowed: true}).Query(ctx, CanDeliverMessage{OrderRef: "TKZ-2024-000001"})
	if err != nil || !deliverable {
		t.Fatalf("can deliver: %v %v", deliverable, err)
	}
}

func TestMessages_ValidateRejectsMissingFields(t *testing.T) {
	messages := map[string]interface{ Validate() error }{
		"get order":     GetOrderMessage{},
		"list orders":   ListOrdersMessage{},
		"list status":   ListOrdersMessage{Filter: core.OrderFilter{TenantID: "G1", Status: "Shipped"}},
		"list negative": ListOrdersMessage{Filter: core.OrderFilter{TenantID: "G1", Limit: -1}},
		"list events":   ListPaymentEventsMessage{OrderRef: "  "},
		"list audit":    ListAuditMessage{},
		"can deliver":   CanDeliverMessage{},
	}
	for name, msg := range messages {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.TextCode != core.ErrorInvalidPayload {
			t.Fatalf("%s: unexpected text code %q", name, rich.TextCode)
		}
	}
	if err := (ListOrdersMessage{Filter: core.OrderFilter{TenantID: "G1", Status: core.OrderStatusPaid}}).Validate(); err != nil {
		t.Fatalf("expected valid filter, got %v", err)
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var q *GetOrderQuery
	_, err := q.Query(context.Background(), GetOrderMessage{OrderRef: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
}

type stubOrderReader struct {
	order      core.Order
	orders     []core.Order
	events     []core.PaymentEvent
	audit      []core.AuditEntry
	lastFilter core.OrderFilter
}

func (s *stubOrderReader) GetOrder(_ context.Context, _ string) (core.Order, error) {
	return s.order, nil
}

func (s *stubOrderReader) ListOrders(_ context.Context, filter core.OrderFilter) ([]core.Order, error) {
	s.lastFilter = filter
	return s.orders, nil
}

func (s *stubOrderReader) ListPaymentEvents(_ context.Context, _ string) ([]core.PaymentEvent, error) {
	return s.events, nil
}

func (s *stubOrderReader) ListAudit(_ context.Context, _ core.AuditFilter) ([]core.AuditEntry, error) {
	return s.audit, nil
}

type stubDeliveryReader struct {
	allowed bool
}

func (s stubDeliveryReader) CanDeliver(_ context.Context, _ string) (bool, error) {
	return s.allowed, nil
}
