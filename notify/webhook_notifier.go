package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/transport"
)

const defaultNotifyTimeout = 10 * time.Second

const (
	colorInfo    = 0x3498DB
	colorSuccess = 0x2ECC71
	colorWarning = 0xE67E22
)

type TenantSettingsReader interface {
	GetTenantSettings(ctx context.Context, tenantID string) (core.TenantSettings, error)
}

type Sender interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

// WebhookNotifier posts an embed message per notification. Tenants without a
// notify url are skipped silently.
type WebhookNotifier struct {
	settings TenantSettingsReader
	sender   Sender
	logger   core.Logger
	timeout  time.Duration
}

type Option func(*WebhookNotifier)

func WithSender(sender Sender) Option {
	return func(n *WebhookNotifier) {
		if sender != nil {
			n.sender = sender
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(n *WebhookNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *WebhookNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func NewWebhookNotifier(settings TenantSettingsReader, opts ...Option) (*WebhookNotifier, error) {
	if settings == nil {
		return nil, core.NewConfigurationError("notify: tenant settings reader is required")
	}
	notifier := &WebhookNotifier{
		settings: settings,
		sender:   transport.NewRESTAdapter(nil),
		logger:   glog.Nop(),
		timeout:  defaultNotifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(notifier)
		}
	}
	return notifier, nil
}

func (n *WebhookNotifier) Notify(ctx context.Context, notification core.Notification) error {
	if n == nil {
		return nil
	}
	tenantID := strings.TrimSpace(notification.TenantID)
	if tenantID == "" {
		return nil
	}
	settings, err := n.settings.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("notify: load tenant settings: %w", err)
	}
	target := strings.TrimSpace(settings.NotifyURL)
	if target == "" {
		return nil
	}

	body, err := json.Marshal(BuildMessage(notification))
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}
	res, err := n.sender.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     target,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Timeout: n.timeout,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("notify: tenant webhook returned HTTP %d", res.StatusCode)
	}
	n.logger.WithContext(ctx).Info("notification sent",
		"kind", string(notification.Kind),
		"tenant_id", tenantID,
		"order_ref", notification.OrderRef,
	)
	return nil
}

type Message struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// BuildMessage renders a notification as an embed. Metadata keys are listed
// in sorted order.
func BuildMessage(notification core.Notification) Message {
	embed := Embed{
		Title: titleFor(notification.Kind),
		Color: colorFor(notification.Kind, notification.Status),
	}
	if notification.OrderRef != "" {
		embed.Description = "Order `" + notification.OrderRef + "`"
	}
	if !notification.OccurredAt.IsZero() {
		embed.Timestamp = notification.OccurredAt.UTC().Format(time.RFC3339)
	}
	if notification.Status != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Status", Value: string(notification.Status), Inline: true})
	}
	if notification.RawStatus != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Processor status", Value: notification.RawStatus, Inline: true})
	}
	if notification.ActorID != "" && notification.ActorID != core.SystemActor {
		embed.Fields = append(embed.Fields, EmbedField{Name: "By", Value: "<@" + notification.ActorID + ">", Inline: true})
	}
	keys := make([]string, 0, len(notification.Metadata))
	for key := range notification.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := fmt.Sprint(notification.Metadata[key])
		if strings.TrimSpace(value) == "" {
			continue
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: key, Value: value, Inline: true})
	}
	return Message{Embeds: []Embed{embed}}
}

func titleFor(kind core.NotificationKind) string {
	switch kind {
	case core.NotificationOrderCreated:
		return "Order created"
	case core.NotificationStatusChanged:
		return "Order status changed"
	case core.NotificationPaymentReceived:
		return "Payment webhook received"
	case core.NotificationPaymentVerified:
		return "Payment verified"
	case core.NotificationOrderDelivered:
		return "Order delivered"
	default:
		return "Order update"
	}
}

func colorFor(kind core.NotificationKind, status core.OrderStatus) int {
	switch status {
	case core.OrderStatusPaid, core.OrderStatusDelivered:
		return colorSuccess
	case core.OrderStatusRefunded, core.OrderStatusDisputed, core.OrderStatusCancelled:
		return colorWarning
	}
	if kind == core.NotificationOrderDelivered {
		return colorSuccess
	}
	return colorInfo
}

var _ core.Notifier = (*WebhookNotifier)(nil)
