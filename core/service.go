package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           Store
	writeGate       WriteGate
	verifier        PaymentVerifier
	notifier        Notifier
	gate            DeliveryGate
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Store           Store
	WriteGate       WriteGate
	Verifier        PaymentVerifier
	Notifier        Notifier
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("reconcile", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("reconcile"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.writeGate == nil {
		builder.writeGate = NewMemoryWriteGate()
	}
	if builder.notifier == nil {
		builder.notifier = NopNotifier{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		store:           builder.store,
		writeGate:       builder.writeGate,
		verifier:        builder.verifier,
		notifier:        builder.notifier,
		gate:            NewDeliveryGate(finalConfig.Delivery.FreshnessWindow),
		now:             builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Store:           s.store,
		WriteGate:       s.writeGate,
		Verifier:        s.verifier,
		Notifier:        s.notifier,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) requireStore() error {
	if s == nil || s.store == nil {
		return NewConfigurationError("order store is not configured")
	}
	return nil
}

// serialize runs fn while holding the write gate for tenantID and then inside
// a single store transaction.
func (s *Service) serialize(
	ctx context.Context,
	tenantID string,
	fn func(ctx context.Context, uow UnitOfWork) error,
) error {
	handle, err := s.writeGate.Acquire(ctx, GateKey(s.config.GateScope(), tenantID))
	if err != nil {
		return WrapError(err, goerrors.CategoryInternal, "acquire write gate", ErrorInternal, map[string]any{"tenant_id": tenantID})
	}
	defer func() {
		if unlockErr := handle.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			s.logError(ctx, "write gate release failed", map[string]any{
				"tenant_id": tenantID,
				"error":     unlockErr.Error(),
			})
		}
	}()
	return s.store.RunInTx(ctx, fn)
}

// applyStatus writes the new status and its ORDER_STATUS audit entry through
// uow.
func (s *Service) applyStatus(
	ctx context.Context,
	uow UnitOfWork,
	order Order,
	status OrderStatus,
	actorID string,
	at time.Time,
) (Order, error) {
	if err := uow.UpdateOrderStatus(ctx, order.Ref, status, at); err != nil {
		return Order{}, err
	}
	if _, err := uow.AppendAudit(ctx, AuditEntry{
		TenantID:  order.TenantID,
		ActorID:   actorOrSystem(actorID),
		Action:    AuditActionOrderStatus,
		Target:    order.Ref,
		Metadata:  map[string]any{"status": string(status)},
		CreatedAt: at,
	}); err != nil {
		return Order{}, err
	}
	order.Status = status
	order.UpdatedAt = at
	return order, nil
}

// notify reports a committed change. Notifier failures never fail the
// operation that triggered them.
func (s *Service) notify(ctx context.Context, notification Notification) {
	if s == nil || s.notifier == nil {
		return
	}
	if notification.OccurredAt.IsZero() {
		notification.OccurredAt = s.now()
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logWarn(ctx, "notification failed", map[string]any{
			"kind":      string(notification.Kind),
			"tenant_id": notification.TenantID,
			"order_ref": notification.OrderRef,
			"error":     err.Error(),
		})
	}
}

func actorOrSystem(actorID string) string {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return SystemActor
	}
	return actorID
}
