package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultVerificationBaseURL  = "https://api.sellauth.com/v1"
	DefaultVerificationTimeout  = 15 * time.Second
	DefaultVerificationAttempts = 3
	DefaultVerificationBackoff  = time.Second
	DefaultWebhookMaxBodyBytes  = int64(1 << 20)
	DefaultServerHost           = "0.0.0.0"
	DefaultServerPort           = 8080
	DefaultDatabaseDriver       = "sqlite3"
	DefaultDatabaseDSN          = "file:data/bot.db?_foreign_keys=on&_busy_timeout=5000"
	DefaultReconcileInterval    = 5 * time.Minute
	DefaultReconcileBatchSize   = 50
)

var orderPrefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,15}$`)

type OrderConfig struct {
	Prefix       string `koanf:"prefix" mapstructure:"prefix"`
	CounterStart int64  `koanf:"counter_start" mapstructure:"counter_start"`
}

type DeliveryConfig struct {
	FreshnessWindow time.Duration `koanf:"freshness_window" mapstructure:"freshness_window"`
}

type LifecycleConfig struct {
	EnforceTransitions bool `koanf:"enforce_transitions" mapstructure:"enforce_transitions"`
}

type WriteGateConfig struct {
	Scope string `koanf:"scope" mapstructure:"scope"`
}

type VerificationConfig struct {
	BaseURL        string        `koanf:"base_url" mapstructure:"base_url"`
	APIKey         string        `koanf:"api_key" mapstructure:"api_key"`
	StoreID        string        `koanf:"store_id" mapstructure:"store_id"`
	Timeout        time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
}

type WebhookConfig struct {
	Secret       string `koanf:"secret" mapstructure:"secret"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type ServerConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	Host    string `koanf:"host" mapstructure:"host"`
	Port    int    `koanf:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

// ReconcileConfig drives the periodic sweep that re-verifies Pending orders
// of the listed tenants in the background.
type ReconcileConfig struct {
	Enabled   bool          `koanf:"enabled" mapstructure:"enabled"`
	Interval  time.Duration `koanf:"interval" mapstructure:"interval"`
	Tenants   []string      `koanf:"tenants" mapstructure:"tenants"`
	BatchSize int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type LogConfig struct {
	Level string `koanf:"level" mapstructure:"level"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Order        OrderConfig        `koanf:"order" mapstructure:"order"`
	Delivery     DeliveryConfig     `koanf:"delivery" mapstructure:"delivery"`
	Lifecycle    LifecycleConfig    `koanf:"lifecycle" mapstructure:"lifecycle"`
	WriteGate    WriteGateConfig    `koanf:"write_gate" mapstructure:"write_gate"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Webhook      WebhookConfig      `koanf:"webhook" mapstructure:"webhook"`
	Server       ServerConfig       `koanf:"server" mapstructure:"server"`
	Database     DatabaseConfig     `koanf:"database" mapstructure:"database"`
	Redis        RedisConfig        `koanf:"redis" mapstructure:"redis"`
	Reconcile    ReconcileConfig    `koanf:"reconcile" mapstructure:"reconcile"`
	Log          LogConfig          `koanf:"log" mapstructure:"log"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "reconcile",
		Order: OrderConfig{
			Prefix:       DefaultOrderPrefix,
			CounterStart: 1,
		},
		Delivery:  DeliveryConfig{FreshnessWindow: DefaultFreshnessWindow},
		WriteGate: WriteGateConfig{Scope: string(WriteGateScopeTenant)},
		Verification: VerificationConfig{
			BaseURL:        DefaultVerificationBaseURL,
			Timeout:        DefaultVerificationTimeout,
			MaxAttempts:    DefaultVerificationAttempts,
			InitialBackoff: DefaultVerificationBackoff,
		},
		Webhook: WebhookConfig{MaxBodyBytes: DefaultWebhookMaxBodyBytes},
		Server: ServerConfig{
			Enabled: true,
			Host:    DefaultServerHost,
			Port:    DefaultServerPort,
		},
		Database: DatabaseConfig{
			Driver: DefaultDatabaseDriver,
			DSN:    DefaultDatabaseDSN,
		},
		Reconcile: ReconcileConfig{
			Interval:  DefaultReconcileInterval,
			BatchSize: DefaultReconcileBatchSize,
		},
		Log: LogConfig{Level: "info"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if !orderPrefixPattern.MatchString(c.Order.Prefix) {
		return fmt.Errorf("core: order.prefix %q must be upper-case alphanumeric", c.Order.Prefix)
	}
	if c.Order.CounterStart < 1 {
		return fmt.Errorf("core: order.counter_start must be at least 1")
	}
	if c.Delivery.FreshnessWindow <= 0 {
		return fmt.Errorf("core: delivery.freshness_window must be positive")
	}
	switch WriteGateScope(c.WriteGate.Scope) {
	case WriteGateScopeTenant, WriteGateScopeGlobal:
	default:
		return fmt.Errorf("core: write_gate.scope %q is not supported", c.WriteGate.Scope)
	}
	if c.Verification.MaxAttempts < 1 {
		return fmt.Errorf("core: verification.max_attempts must be at least 1")
	}
	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("core: verification.timeout must be positive")
	}
	if c.Verification.InitialBackoff < 0 {
		return fmt.Errorf("core: verification.initial_backoff must not be negative")
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		return fmt.Errorf("core: webhook.max_body_bytes must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("core: server.port %d is out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: database.driver %q is not supported", c.Database.Driver)
	}
	if c.Reconcile.Enabled {
		if c.Reconcile.Interval <= 0 {
			return fmt.Errorf("core: reconcile.interval must be positive")
		}
		if c.Reconcile.BatchSize < 1 {
			return fmt.Errorf("core: reconcile.batch_size must be at least 1")
		}
		if len(c.Reconcile.Tenants) == 0 {
			return fmt.Errorf("core: reconcile.tenants is required when reconcile is enabled")
		}
	}
	return nil
}

func (c Config) GateScope() WriteGateScope {
	return WriteGateScope(c.WriteGate.Scope)
}
