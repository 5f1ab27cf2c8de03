package reconcile

import (
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/inbound"
	"github.com/goliatone/go-reconcile/webhooks"
)

func SellAuthProcessor(cfg core.WebhookConfig, ingestor webhooks.PaymentIngestor, logger core.Logger) *webhooks.Processor {
	processor := webhooks.NewProcessor(webhooks.NewSellAuthTemplate(cfg.Secret), ingestor)
	if logger != nil {
		processor.Logger = logger
	}
	return processor
}

// NewWebhookDispatcher registers every built-in processor against ingestor.
func NewWebhookDispatcher(cfg core.WebhookConfig, ingestor webhooks.PaymentIngestor, logger core.Logger) (*inbound.Dispatcher, error) {
	dispatcher := inbound.NewDispatcher()
	if err := dispatcher.Register(webhooks.ProcessorSellAuth, SellAuthProcessor(cfg, ingestor, logger)); err != nil {
		return nil, err
	}
	return dispatcher, nil
}
