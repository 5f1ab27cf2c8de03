package inbound

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/webhooks"
)

func nilDispatcherError() error {
	return core.NewError("inbound: dispatcher is nil", goerrors.CategoryInternal, core.ErrorInternal, nil)
}

type WebhookProcessor interface {
	Process(ctx context.Context, req webhooks.Request) (webhooks.Result, error)
}

// Dispatcher routes webhook deliveries to the processor registered for the
// path segment that names it.
type Dispatcher struct {
	mu         sync.RWMutex
	processors map[string]WebhookProcessor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{processors: map[string]WebhookProcessor{}}
}

func (d *Dispatcher) Register(processorID string, processor WebhookProcessor) error {
	if d == nil {
		return nilDispatcherError()
	}
	if processor == nil {
		return core.NewInvalidPayloadError("inbound: processor is nil", nil)
	}
	id := normalizeProcessorID(processorID)
	if id == "" {
		return core.NewInvalidPayloadError("inbound: processor id is required", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processors == nil {
		d.processors = map[string]WebhookProcessor{}
	}
	if _, exists := d.processors[id]; exists {
		return core.NewError(
			fmt.Sprintf("inbound: processor already registered for %q", id),
			goerrors.CategoryConflict,
			core.ErrorInternal,
			map[string]any{"processor": id},
		)
	}
	d.processors[id] = processor
	return nil
}

func (d *Dispatcher) Processors() []string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.processors))
	for id := range d.processors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dispatcher) Dispatch(ctx context.Context, req webhooks.Request) (webhooks.Result, error) {
	if d == nil {
		return webhooks.Result{StatusCode: http.StatusInternalServerError}, nilDispatcherError()
	}
	req.ProcessorID = normalizeProcessorID(req.ProcessorID)
	d.mu.RLock()
	processor := d.processors[req.ProcessorID]
	d.mu.RUnlock()
	if processor == nil {
		result := webhooks.Result{
			StatusCode: http.StatusNotFound,
			Body:       map[string]any{"ok": false, "error": "unknown processor"},
		}
		return result, core.NewNotFoundError(
			fmt.Sprintf("inbound: no processor registered for %q", req.ProcessorID),
			map[string]any{"processor": req.ProcessorID},
		)
	}
	return processor.Process(ctx, req)
}

func normalizeProcessorID(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
