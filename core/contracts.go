package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// VerificationResult is the normalized answer of a remote status lookup.
type VerificationResult struct {
	Paid       bool
	Status     string
	Amount     float64
	Currency   string
	RawPayload map[string]any
}

type PaymentVerifier interface {
	Verify(ctx context.Context, externalRef string) (VerificationResult, error)
}

// OrderReader exposes unserialized reads. Results may be stale with respect
// to concurrent writers.
type OrderReader interface {
	GetOrder(ctx context.Context, orderRef string) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	LatestVerificationCheck(ctx context.Context, orderRef string) (*VerificationCheck, error)
	LatestPaymentEvent(ctx context.Context, orderRef string) (*PaymentEvent, error)
	ListPaymentEvents(ctx context.Context, orderRef string) ([]PaymentEvent, error)
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	FindProduct(ctx context.Context, tenantID string, name string) (Product, error)
}

// UnitOfWork is the transactional view handed to Store.RunInTx. Every write
// performed through it commits or rolls back together.
type UnitOfWork interface {
	OrderReader
	NextOrderSequence(ctx context.Context, key string, start int64) (int64, error)
	CreateOrder(ctx context.Context, order Order) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderRef string, status OrderStatus, at time.Time) error
	AppendPaymentEvent(ctx context.Context, event PaymentEvent) (PaymentEvent, error)
	AppendVerificationCheck(ctx context.Context, check VerificationCheck) (VerificationCheck, error)
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ClaimStockKey(ctx context.Context, productID string, orderRef string, at time.Time) (StockKey, error)
}

type Store interface {
	OrderReader
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// WriteGate serializes read-decide-write sequences. Acquire blocks until the
// key is free or ctx is done.
type WriteGate interface {
	Acquire(ctx context.Context, key string) (LockHandle, error)
}

type NotificationKind string

const (
	NotificationOrderCreated    NotificationKind = "order_created"
	NotificationStatusChanged   NotificationKind = "status_changed"
	NotificationPaymentReceived NotificationKind = "payment_received"
	NotificationPaymentVerified NotificationKind = "payment_verified"
	NotificationOrderDelivered  NotificationKind = "order_delivered"
)

// Notification never carries delivered stock key values.
type Notification struct {
	Kind       NotificationKind
	TenantID   string
	OrderRef   string
	Status     OrderStatus
	RawStatus  string
	ActorID    string
	Metadata   map[string]any
	OccurredAt time.Time
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// ReconciliationService is the surface the command, query and transport
// layers call into.
type ReconciliationService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	SetStatus(ctx context.Context, req SetStatusRequest) (Order, error)
	GetOrder(ctx context.Context, orderRef string) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	ManualVerify(ctx context.Context, req VerifyRequest) (VerifyOutcome, error)
	CanDeliver(ctx context.Context, orderRef string) (bool, error)
	Deliver(ctx context.Context, req DeliverRequest) (Delivery, error)
	IngestPayment(ctx context.Context, signal PaymentSignal) (IngestResult, error)
	ListPaymentEvents(ctx context.Context, orderRef string) ([]PaymentEvent, error)
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
