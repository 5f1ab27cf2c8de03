// Package reconcile is the entry point of the order payment reconciliation
// engine. It re-exports the core service and wires the command, query and
// webhook surfaces around it.
package reconcile

import "github.com/goliatone/go-reconcile/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Order = core.Order
type OrderStatus = core.OrderStatus
type PaymentEvent = core.PaymentEvent
type VerificationCheck = core.VerificationCheck
type AuditEntry = core.AuditEntry
type Notification = core.Notification

type CreateOrderRequest = core.CreateOrderRequest
type SetStatusRequest = core.SetStatusRequest
type VerifyRequest = core.VerifyRequest
type DeliverRequest = core.DeliverRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStore           = core.WithStore
	WithWriteGate       = core.WithWriteGate
	WithPaymentVerifier = core.WithPaymentVerifier
	WithNotifier        = core.WithNotifier
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service whose file layer comes from the process environment.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	base := []Option{WithConfigProvider(core.NewCfgxConfigProvider(core.NewEnvConfigLoader()))}
	return core.NewService(cfg, append(base, opts...)...)
}
