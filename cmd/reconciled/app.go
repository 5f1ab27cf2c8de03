package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	reconcile "github.com/goliatone/go-reconcile"
	"github.com/goliatone/go-reconcile/adapters/gologger"
	promadapter "github.com/goliatone/go-reconcile/adapters/prometheus"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/lock/redislock"
	"github.com/goliatone/go-reconcile/migrations"
	"github.com/goliatone/go-reconcile/notify"
	sqlstore "github.com/goliatone/go-reconcile/store/sql"
	"github.com/goliatone/go-reconcile/verify"
)

const databasePingTimeout = 5 * time.Second

type persistenceConfig struct {
	database core.DatabaseConfig
}

func (c persistenceConfig) GetDebug() bool                { return c.database.Debug }
func (c persistenceConfig) GetDriver() string             { return c.database.Driver }
func (c persistenceConfig) GetServer() string             { return c.database.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return databasePingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return "reconciled" }

// loadConfig resolves defaults, then the process environment, then flags.
func loadConfig(ctx context.Context, opts *RootOptions) (core.Config, error) {
	cfg, err := core.NewCfgxConfigProvider(core.NewEnvConfigLoader()).Load(ctx, reconcile.DefaultConfig())
	if err != nil {
		return core.Config{}, err
	}
	if opts != nil {
		if level := strings.TrimSpace(opts.LogLevel); level != "" {
			cfg.Log.Level = level
		}
		if driver := strings.TrimSpace(opts.Driver); driver != "" {
			cfg.Database.Driver = strings.ToLower(driver)
		}
		if dsn := strings.TrimSpace(opts.DSN); dsn != "" {
			cfg.Database.DSN = dsn
		}
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, core.WrapError(err, goerrors.CategoryValidation, "invalid configuration", core.ErrorConfiguration, nil)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg core.Config) *gologger.SlogLogger {
	return gologger.NewSlogLogger(w, cfg.Log.Level).Named(cfg.ServiceName)
}

// dialectFor maps a configured driver to its bun dialect and migration tree.
func dialectFor(driver string) (schema.Dialect, string, error) {
	migrationDialect, err := migrations.DialectForDriver(driver)
	if err != nil {
		return nil, "", core.WrapError(err, goerrors.CategoryValidation, "unsupported database driver", core.ErrorConfiguration, map[string]any{"driver": driver})
	}
	if migrationDialect == migrations.DialectPostgres {
		return pgdialect.New(), migrationDialect, nil
	}
	return sqlitedialect.New(), migrationDialect, nil
}

// openDatabase opens the configured database and registers the migration
// tree matching its dialect. Migrations are not applied here.
func openDatabase(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	dialect, migrationDialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{database: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("new persistence client: %w", err)
	}

	_, err = migrations.Register(ctx, func(_ context.Context, source migrations.Source) error {
		client.RegisterSQLMigrations(source.FS)
		return nil
	}, migrationDialect)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// stack is the fully wired engine shared by serve and verify.
type stack struct {
	config   core.Config
	logger   *gologger.SlogLogger
	client   *persistence.Client
	service  *reconcile.Service
	registry *prometheus.Registry
	recorder core.MetricsRecorder
}

func (s *stack) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func buildStack(ctx context.Context, cfg core.Config, logger *gologger.SlogLogger) (*stack, error) {
	client, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tenant settings cache: %w", err)
	}
	settings, err := factory.CachedTenantSettingsStore(cacheService)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	provider := gologger.NewSlogProvider(logger)
	notifier, err := notify.NewWebhookNotifier(settings, notify.WithLogger(provider.GetLogger("notify")))
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	gate, err := newWriteGate(ctx, cfg.Redis)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	recorder := promadapter.NewRecorder(registry,
		promadapter.WithNamespace("reconcile"),
		promadapter.WithErrorHandler(func(name string, err error) {
			logger.Warn("metric registration failed", "metric", name, "error", err)
		}),
	)

	verifier := verify.NewClient(verify.ConfigFromCore(cfg.Verification),
		verify.WithLogger(provider.GetLogger("verify")),
	)

	service, err := reconcile.NewService(cfg,
		reconcile.WithLoggerProvider(provider),
		reconcile.WithMetricsRecorder(recorder),
		reconcile.WithStore(factory.OrderStore()),
		reconcile.WithWriteGate(gate),
		reconcile.WithPaymentVerifier(verifier),
		reconcile.WithNotifier(notifier),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &stack{
		config:   service.Config(),
		logger:   logger,
		client:   client,
		service:  service,
		registry: registry,
		recorder: recorder,
	}, nil
}

// newWriteGate uses redis when an address is configured so several processes
// share one gate.
func newWriteGate(ctx context.Context, cfg core.RedisConfig) (core.WriteGate, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return core.NewMemoryWriteGate(), nil
	}
	gate, err := redislock.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := gate.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis write gate %s: %w", cfg.Addr, err)
	}
	return gate, nil
}
