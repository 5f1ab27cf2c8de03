package gojob

import (
	"context"
	"errors"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
)

// PendingOrderSource is the read side a Sweeper needs from the service.
type PendingOrderSource interface {
	ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error)
	ListPaymentEvents(ctx context.Context, orderRef string) ([]core.PaymentEvent, error)
}

// Sweeper periodically schedules reconciliation for Pending orders that
// already have a processor reference on record.
type Sweeper struct {
	source    PendingOrderSource
	scheduler *Scheduler
	tenants   []string
	interval  time.Duration
	batchSize int
	logger    core.Logger
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger core.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSweeper(source PendingOrderSource, scheduler *Scheduler, cfg core.ReconcileConfig, opts ...SweeperOption) (*Sweeper, error) {
	if source == nil {
		return nil, core.NewConfigurationError("gojob: pending order source is required")
	}
	if scheduler == nil {
		return nil, core.NewConfigurationError("gojob: scheduler is required")
	}
	s := &Sweeper{
		source:    source,
		scheduler: scheduler,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    glog.Nop(),
	}
	for _, tenant := range cfg.Tenants {
		if tenant = strings.TrimSpace(tenant); tenant != "" {
			s.tenants = append(s.tenants, tenant)
		}
	}
	if s.interval <= 0 {
		s.interval = core.DefaultReconcileInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = core.DefaultReconcileBatchSize
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Sweep schedules one pass over every tenant and returns how many orders
// were enqueued. A failing tenant does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	var (
		scheduled int
		errs      []error
	)
	for _, tenant := range s.tenants {
		orders, err := s.source.ListOrders(ctx, core.OrderFilter{
			TenantID: tenant,
			Status:   core.OrderStatusPending,
			Limit:    s.batchSize,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, order := range orders {
			externalRef, err := s.latestExternalRef(ctx, order.Ref)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if externalRef == "" {
				continue
			}
			if err := s.scheduler.Schedule(ctx, ReconcileRequest{
				OrderRef:    order.Ref,
				ExternalRef: externalRef,
				TenantID:    tenant,
			}); err != nil {
				errs = append(errs, err)
				continue
			}
			scheduled++
		}
	}
	return scheduled, errors.Join(errs...)
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		scheduled, err := s.Sweep(ctx)
		logger := s.logger.WithContext(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("reconcile sweep incomplete", "scheduled", scheduled, "error", err)
		} else if scheduled > 0 {
			logger.Info("reconcile sweep scheduled orders", "scheduled", scheduled)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) latestExternalRef(ctx context.Context, orderRef string) (string, error) {
	events, err := s.source.ListPaymentEvents(ctx, orderRef)
	if err != nil {
		return "", err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if ref := strings.TrimSpace(events[i].ExternalRef); ref != "" {
			return ref, nil
		}
	}
	return "", nil
}
