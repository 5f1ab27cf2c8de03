package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfigLoader reads the bot's environment variables into the nested raw
// map consumed by CfgxConfigProvider. Unset variables leave their key out so
// defaults survive.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Lookup: os.LookupEnv}
}

type envBinding struct {
	env     string
	section string
	key     string
	parse   func(string) (any, error)
}

var envBindings = []envBinding{
	{env: "SERVICE_NAME", key: "service_name"},
	{env: "ORDER_PREFIX", section: "order", key: "prefix", parse: parseUpper},
	{env: "ORDER_COUNTER_START", section: "order", key: "counter_start", parse: parseInt64},
	{env: "DELIVERY_FRESHNESS_WINDOW", section: "delivery", key: "freshness_window", parse: parseDuration},
	{env: "ENFORCE_STATUS_TRANSITIONS", section: "lifecycle", key: "enforce_transitions", parse: parseBool},
	{env: "WRITE_GATE_SCOPE", section: "write_gate", key: "scope", parse: parseLower},
	{env: "SELLAUTH_BASE_URL", section: "verification", key: "base_url", parse: parseBaseURL},
	{env: "SELLAUTH_API_KEY", section: "verification", key: "api_key"},
	{env: "SELLAUTH_STORE_ID", section: "verification", key: "store_id"},
	{env: "SELLAUTH_TIMEOUT", section: "verification", key: "timeout", parse: parseDuration},
	{env: "SELLAUTH_MAX_ATTEMPTS", section: "verification", key: "max_attempts", parse: parseInt},
	{env: "SELLAUTH_WEBHOOK_SECRET", section: "webhook", key: "secret"},
	{env: "WEBHOOK_MAX_BODY_BYTES", section: "webhook", key: "max_body_bytes", parse: parseInt64},
	{env: "ENABLE_WEBHOOK_SERVER", section: "server", key: "enabled", parse: parseBool},
	{env: "WEBHOOK_HOST", section: "server", key: "host"},
	{env: "WEBHOOK_PORT", section: "server", key: "port", parse: parseInt},
	{env: "REDIS_ADDR", section: "redis", key: "addr"},
	{env: "REDIS_PASSWORD", section: "redis", key: "password"},
	{env: "REDIS_DB", section: "redis", key: "db", parse: parseInt},
	{env: "DATABASE_DEBUG", section: "database", key: "debug", parse: parseBool},
	{env: "RECONCILE_ENABLED", section: "reconcile", key: "enabled", parse: parseBool},
	{env: "RECONCILE_INTERVAL", section: "reconcile", key: "interval", parse: parseDuration},
	{env: "RECONCILE_TENANTS", section: "reconcile", key: "tenants", parse: parseList},
	{env: "RECONCILE_BATCH_SIZE", section: "reconcile", key: "batch_size", parse: parseInt},
	{env: "LOG_LEVEL", section: "log", key: "level", parse: parseLower},
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookupTrimmed(lookup, binding.env)
		if !ok {
			continue
		}
		var parsed any = value
		if binding.parse != nil {
			var err error
			if parsed, err = binding.parse(value); err != nil {
				return nil, fmt.Errorf("core: %s: %w", binding.env, err)
			}
		}
		setRaw(raw, binding.section, binding.key, parsed)
	}

	// DATABASE_URL selects postgres and wins over DATABASE_PATH.
	if dsn, ok := lookupTrimmed(lookup, "DATABASE_URL"); ok {
		setRaw(raw, "database", "driver", "postgres")
		setRaw(raw, "database", "dsn", dsn)
	} else if path, ok := lookupTrimmed(lookup, "DATABASE_PATH"); ok {
		setRaw(raw, "database", "driver", DefaultDatabaseDriver)
		setRaw(raw, "database", "dsn", SQLiteDSN(path))
	}
	return raw, nil
}

// SQLiteDSN builds a file DSN with foreign keys and a busy timeout enabled.
func SQLiteDSN(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	value, ok := lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func setRaw(raw map[string]any, section, key string, value any) {
	if section == "" {
		raw[key] = value
		return
	}
	nested, ok := raw[section].(map[string]any)
	if !ok {
		nested = map[string]any{}
		raw[section] = nested
	}
	nested[key] = value
}

func parseInt(value string) (any, error) {
	return strconv.Atoi(value)
}

func parseInt64(value string) (any, error) {
	return strconv.ParseInt(value, 10, 64)
}

func parseBool(value string) (any, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", value)
}

func parseDuration(value string) (any, error) {
	return time.ParseDuration(value)
}

func parseUpper(value string) (any, error) {
	return strings.ToUpper(value), nil
}

func parseLower(value string) (any, error) {
	return strings.ToLower(value), nil
}

func parseList(value string) (any, error) {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseBaseURL(value string) (any, error) {
	return strings.TrimRight(value, "/"), nil
}

var _ RawConfigLoader = EnvConfigLoader{}
