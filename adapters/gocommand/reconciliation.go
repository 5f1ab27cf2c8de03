package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-reconcile/command"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/query"
)

// Handlers groups the subscriptions created for one reconciliation service.
type Handlers struct {
	subscriptions []commanddispatcher.Subscription
}

func (h *Handlers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.subscriptions)
}

func (h *Handlers) Unsubscribe() {
	if h == nil {
		return
	}
	for _, subscription := range h.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	h.subscriptions = nil
}

// RegisterReconciliation subscribes every order command and query to the
// dispatcher and records them in the registry. On failure the subscriptions
// created so far are removed.
func RegisterReconciliation(
	adapter *RegistryAdapter,
	service core.ReconciliationService,
	runnerOpts ...runner.Option,
) (*Handlers, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: reconciliation service is required")
	}

	handlers := &Handlers{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewCreateOrderCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewSetStatusCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewIngestPaymentCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewManualVerifyCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewDeliverCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewGetOrderQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewListOrdersQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewListPaymentEventsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewListAuditQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewCanDeliverQuery(service), runnerOpts...)
		},
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			handlers.Unsubscribe()
			return nil, err
		}
		handlers.subscriptions = append(handlers.subscriptions, subscription)
	}
	return handlers, nil
}
