package reconcile

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/command"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/query"
)

type stubFacadeService struct {
	lastSetStatus core.SetStatusRequest
	lastDeliver   core.DeliverRequest
	audit         []core.AuditEntry
}

func (s *stubFacadeService) CreateOrder(_ context.Context, req core.CreateOrderRequest) (core.Order, error) {
	return core.Order{Ref: "TKZ-2026-000001", TenantID: req.TenantID, Status: core.OrderStatusPending}, nil
}

func (s *stubFacadeService) SetStatus(_ context.Context, req core.SetStatusRequest) (core.Order, error) {
	s.lastSetStatus = req
	return core.Order{Ref: req.OrderRef, Status: core.OrderStatus(req.Status)}, nil
}

func (s *stubFacadeService) GetOrder(_ context.Context, orderRef string) (core.Order, error) {
	return core.Order{Ref: orderRef, Status: core.OrderStatusPaid}, nil
}

func (s *stubFacadeService) ListOrders(context.Context, core.OrderFilter) ([]core.Order, error) {
	return []core.Order{{Ref: "TKZ-2026-000002"}, {Ref: "TKZ-2026-000001"}}, nil
}

func (s *stubFacadeService) ManualVerify(_ context.Context, req core.VerifyRequest) (core.VerifyOutcome, error) {
	return core.VerifyOutcome{Order: core.Order{Ref: req.OrderRef}, ExternalRef: req.ExternalRef}, nil
}

func (s *stubFacadeService) CanDeliver(context.Context, string) (bool, error) {
	return false, nil
}

func (s *stubFacadeService) Deliver(_ context.Context, req core.DeliverRequest) (core.Delivery, error) {
	s.lastDeliver = req
	return core.Delivery{Order: core.Order{Ref: req.OrderRef, Status: core.OrderStatusDelivered}, Key: core.StockKey{Value: "KEY-1"}}, nil
}

func (s *stubFacadeService) IngestPayment(_ context.Context, signal core.PaymentSignal) (core.IngestResult, error) {
	return core.IngestResult{TenantID: signal.TenantID}, nil
}

func (s *stubFacadeService) ListPaymentEvents(context.Context, string) ([]core.PaymentEvent, error) {
	return nil, nil
}

func (s *stubFacadeService) ListAudit(context.Context, core.AuditFilter) ([]core.AuditEntry, error) {
	return s.audit, nil
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.CreateOrder == nil || commands.SetStatus == nil || commands.IngestPayment == nil ||
		commands.ManualVerify == nil || commands.Deliver == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetOrder == nil || queries.ListOrders == nil || queries.ListPaymentEvents == nil ||
		queries.ListAudit == nil || queries.CanDeliver == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{audit: []core.AuditEntry{{Action: core.AuditActionOrderStatus}}}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().SetStatus.Execute(context.Background(), command.SetStatusMessage{
		Request: core.SetStatusRequest{OrderRef: "TKZ-2026-000001", Status: "Paid", ActorID: "42"},
	}); err != nil {
		t.Fatalf("execute set status: %v", err)
	}
	if svc.lastSetStatus.OrderRef != "TKZ-2026-000001" || svc.lastSetStatus.ActorID != "42" {
		t.Fatalf("unexpected set status delegation: %+v", svc.lastSetStatus)
	}

	collector := gocmd.NewResult[core.Delivery]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Deliver.Execute(ctx, command.DeliverMessage{
		Request: core.DeliverRequest{OrderRef: "TKZ-2026-000001", ActorID: "42"},
	}); err != nil {
		t.Fatalf("execute deliver: %v", err)
	}
	delivery, ok := collector.Load()
	if !ok || delivery.Key.Value != "KEY-1" {
		t.Fatalf("expected delivered key in result, got %+v (ok=%t)", delivery, ok)
	}

	orders, err := facade.Queries().ListOrders.Query(context.Background(), query.ListOrdersMessage{
		Filter: core.OrderFilter{TenantID: "G1"},
	})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].Ref != "TKZ-2026-000002" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	deliverable, err := facade.Queries().CanDeliver.Query(context.Background(), query.CanDeliverMessage{OrderRef: "TKZ-2026-000001"})
	if err != nil {
		t.Fatalf("can deliver: %v", err)
	}
	if deliverable {
		t.Fatalf("expected stub answer false")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
