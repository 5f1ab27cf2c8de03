package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/transport"
)

const defaultMaxResponseBytes int64 = 1 << 20

type Config struct {
	BaseURL        string
	APIKey         string
	StoreID        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func ConfigFromCore(cfg core.VerificationConfig) Config {
	return Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		StoreID:        cfg.StoreID,
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
	}
}

type Client struct {
	config Config
	http   *transport.RESTAdapter
	retry  RetryPolicy
	sleep  Sleeper
	logger core.Logger
}

type Option func(*Client)

func WithHTTPClient(doer transport.HTTPDoer) Option {
	return func(c *Client) {
		c.http = transport.NewRESTAdapter(doer)
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = core.DefaultVerificationTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = core.DefaultVerificationAttempts
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	client := &Client{
		config: cfg,
		http:   transport.NewRESTAdapter(nil),
		retry:  ExponentialRetryPolicy{Initial: cfg.InitialBackoff},
		sleep:  contextSleep,
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	client.logger = glog.Ensure(client.logger)
	client.http.DefaultHeaders["Accept"] = "application/json"
	client.http.MaxResponseBodyBytes = defaultMaxResponseBytes
	return client
}

// Verify looks up externalRef and normalizes the remote status. Missing
// credentials fail immediately; remote failures are retried and then
// surfaced as a remote unavailable error carrying the last cause.
func (c *Client) Verify(ctx context.Context, externalRef string) (core.VerificationResult, error) {
	payload, err := c.FetchOrder(ctx, externalRef)
	if err != nil {
		return core.VerificationResult{}, err
	}
	status := ExtractStatus(payload)
	amount, currency := extractAmount(payload)
	return core.VerificationResult{
		Paid:       core.IsPaidStatus(status),
		Status:     status,
		Amount:     amount,
		Currency:   currency,
		RawPayload: payload,
	}, nil
}

// FetchOrder returns the decoded remote order document. Non-object JSON
// bodies are wrapped as {"raw": value}.
func (c *Client) FetchOrder(ctx context.Context, externalRef string) (map[string]any, error) {
	if c == nil {
		return nil, core.NewConfigurationError("payment verification client is not configured")
	}
	if c.config.APIKey == "" {
		return nil, core.NewConfigurationError("payment processor api key is not configured")
	}
	if c.config.BaseURL == "" {
		return nil, core.NewConfigurationError("payment processor base url is not configured")
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, core.NewInvalidPayloadError("external order reference is required", map[string]any{"external_ref": "required"})
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		attempts = attempt
		payload, err := c.fetchOnce(ctx, externalRef)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if attempt == c.config.MaxAttempts {
			break
		}
		delay := c.retry.NextDelay(attempt)
		c.logger.Warn("payment processor lookup failed, retrying",
			"external_ref", externalRef,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", err, sleepErr)
			break
		}
	}
	return nil, core.NewRemoteUnavailableError(lastErr, attempts)
}

func (c *Client) fetchOnce(ctx context.Context, externalRef string) (map[string]any, error) {
	res, err := c.http.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     c.config.BaseURL + "/orders/" + url.PathEscape(externalRef),
		Headers: map[string]string{"Authorization": "Bearer " + c.config.APIKey},
		Timeout: c.config.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("verify: payment processor returned HTTP %d: %s", res.StatusCode, truncate(string(res.Body), 200))
	}
	var decoded any
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return nil, fmt.Errorf("verify: payment processor returned malformed body: %w", err)
	}
	if object, ok := decoded.(map[string]any); ok {
		return object, nil
	}
	return map[string]any{"raw": decoded}, nil
}

// ExtractStatus reads status, data.status or order.status, in that order, and
// lower-cases it. Absent statuses read as "unknown".
func ExtractStatus(payload map[string]any) string {
	candidates := []any{
		payload["status"],
		nested(payload, "data")["status"],
		nested(payload, "order")["status"],
	}
	for _, candidate := range candidates {
		if value := scalarString(candidate); value != "" {
			return core.NormalizeStatus(value)
		}
	}
	return "unknown"
}

func extractAmount(payload map[string]any) (float64, string) {
	sources := []map[string]any{payload, nested(payload, "data"), nested(payload, "order")}
	var amount float64
	currency := ""
	for _, source := range sources {
		if amount == 0 {
			for _, key := range []string{"amount", "total", "price"} {
				if value, ok := numberValue(source[key]); ok && value != 0 {
					amount = value
					break
				}
			}
		}
		if currency == "" {
			currency = strings.ToUpper(scalarString(source["currency"]))
		}
	}
	return amount, currency
}

func nested(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	if value, ok := payload[key].(map[string]any); ok {
		return value
	}
	return map[string]any{}
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == 0 {
			return ""
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func numberValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

var _ core.PaymentVerifier = (*Client)(nil)
