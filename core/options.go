package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
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
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithStore(store Store) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithWriteGate(gate WriteGate) Option {
	return func(b *serviceBuilder) {
		b.writeGate = gate
	}
}

func WithPaymentVerifier(verifier PaymentVerifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("reconcile", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		writeGate:       NewMemoryWriteGate(),
		notifier:        NopNotifier{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw configuration map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

// Resolve layers runtime over loaded over defaults. The loaded layer already
// carries defaults, so it is applied in full; the runtime layer only
// contributes non-zero values.
func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, true),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	section := func(name string, values map[string]any) {
		if len(values) > 0 {
			layer[name] = values
		}
	}
	put := func(target map[string]any, key string, value any, zero bool) {
		if includeZero || !zero {
			target[key] = value
		}
	}

	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	order := map[string]any{}
	put(order, "prefix", cfg.Order.Prefix, strings.TrimSpace(cfg.Order.Prefix) == "")
	put(order, "counter_start", cfg.Order.CounterStart, cfg.Order.CounterStart == 0)
	section("order", order)

	delivery := map[string]any{}
	put(delivery, "freshness_window", cfg.Delivery.FreshnessWindow, cfg.Delivery.FreshnessWindow == 0)
	section("delivery", delivery)

	lifecycle := map[string]any{}
	put(lifecycle, "enforce_transitions", cfg.Lifecycle.EnforceTransitions, !cfg.Lifecycle.EnforceTransitions)
	section("lifecycle", lifecycle)

	gate := map[string]any{}
	put(gate, "scope", cfg.WriteGate.Scope, strings.TrimSpace(cfg.WriteGate.Scope) == "")
	section("write_gate", gate)

	verification := map[string]any{}
	put(verification, "base_url", cfg.Verification.BaseURL, strings.TrimSpace(cfg.Verification.BaseURL) == "")
	put(verification, "api_key", cfg.Verification.APIKey, strings.TrimSpace(cfg.Verification.APIKey) == "")
	put(verification, "store_id", cfg.Verification.StoreID, strings.TrimSpace(cfg.Verification.StoreID) == "")
	put(verification, "timeout", cfg.Verification.Timeout, cfg.Verification.Timeout == 0)
	put(verification, "max_attempts", cfg.Verification.MaxAttempts, cfg.Verification.MaxAttempts == 0)
	put(verification, "initial_backoff", cfg.Verification.InitialBackoff, cfg.Verification.InitialBackoff == 0)
	section("verification", verification)

	webhook := map[string]any{}
	put(webhook, "secret", cfg.Webhook.Secret, cfg.Webhook.Secret == "")
	put(webhook, "max_body_bytes", cfg.Webhook.MaxBodyBytes, cfg.Webhook.MaxBodyBytes == 0)
	section("webhook", webhook)

	server := map[string]any{}
	put(server, "enabled", cfg.Server.Enabled, !cfg.Server.Enabled)
	put(server, "host", cfg.Server.Host, strings.TrimSpace(cfg.Server.Host) == "")
	put(server, "port", cfg.Server.Port, cfg.Server.Port == 0)
	section("server", server)

	database := map[string]any{}
	put(database, "driver", cfg.Database.Driver, strings.TrimSpace(cfg.Database.Driver) == "")
	put(database, "dsn", cfg.Database.DSN, strings.TrimSpace(cfg.Database.DSN) == "")
	put(database, "debug", cfg.Database.Debug, !cfg.Database.Debug)
	section("database", database)

	redis := map[string]any{}
	put(redis, "addr", cfg.Redis.Addr, strings.TrimSpace(cfg.Redis.Addr) == "")
	put(redis, "password", cfg.Redis.Password, cfg.Redis.Password == "")
	put(redis, "db", cfg.Redis.DB, cfg.Redis.DB == 0)
	section("redis", redis)

	reconcile := map[string]any{}
	put(reconcile, "enabled", cfg.Reconcile.Enabled, !cfg.Reconcile.Enabled)
	put(reconcile, "interval", cfg.Reconcile.Interval, cfg.Reconcile.Interval == 0)
	put(reconcile, "tenants", append([]string(nil), cfg.Reconcile.Tenants...), len(cfg.Reconcile.Tenants) == 0)
	put(reconcile, "batch_size", cfg.Reconcile.BatchSize, cfg.Reconcile.BatchSize == 0)
	section("reconcile", reconcile)

	log := map[string]any{}
	put(log, "level", cfg.Log.Level, strings.TrimSpace(cfg.Log.Level) == "")
	section("log", log)

	return layer
}
