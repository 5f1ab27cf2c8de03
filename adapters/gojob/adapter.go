// Package gojob runs order reconciliation through go-job queues: a scheduler
// enqueues verification requests and a worker drains them.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
)

const (
	JobIDReconcileOrder = "orders.reconcile"

	paramOrderRef    = "order_ref"
	paramExternalRef = "external_ref"
	paramTenantID    = "tenant_id"
)

// RetryPolicy bounds how often a failed reconciliation is requeued.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		MaxDelay:        5 * time.Minute,
		BaseDelay:       10 * time.Second,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt clamps opts for the given attempt; at the bound the
// message is no longer requeued.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// DelayFor doubles BaseDelay per attempt.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// ReconcileRequest names the order a worker should verify. ExternalRef may be
// empty, in which case the latest payment event supplies it.
type ReconcileRequest struct {
	OrderRef    string
	ExternalRef string
	TenantID    string
}

func NewReconcileMessage(req ReconcileRequest) (*job.ExecutionMessage, error) {
	orderRef := strings.TrimSpace(req.OrderRef)
	if orderRef == "" {
		return nil, core.NewInvalidPayloadError("order reference is required", map[string]any{paramOrderRef: "required"})
	}
	params := map[string]any{paramOrderRef: orderRef}
	if externalRef := strings.TrimSpace(req.ExternalRef); externalRef != "" {
		params[paramExternalRef] = externalRef
	}
	if tenantID := strings.TrimSpace(req.TenantID); tenantID != "" {
		params[paramTenantID] = tenantID
	}
	return &job.ExecutionMessage{
		JobID:          JobIDReconcileOrder,
		ScriptPath:     JobIDReconcileOrder,
		Parameters:     params,
		IdempotencyKey: JobIDReconcileOrder + ":" + orderRef,
	}, nil
}

func ReconcileRequestFromMessage(msg *job.ExecutionMessage) (ReconcileRequest, error) {
	if msg == nil {
		return ReconcileRequest{}, core.NewInvalidPayloadError("execution message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) != JobIDReconcileOrder {
		return ReconcileRequest{}, core.NewInvalidPayloadError(
			fmt.Sprintf("unsupported job %q", msg.JobID),
			map[string]any{"job_id": msg.JobID},
		)
	}
	req := ReconcileRequest{
		OrderRef:    stringParam(msg.Parameters, paramOrderRef),
		ExternalRef: stringParam(msg.Parameters, paramExternalRef),
		TenantID:    stringParam(msg.Parameters, paramTenantID),
	}
	if req.OrderRef == "" {
		return ReconcileRequest{}, core.NewInvalidPayloadError("order reference is required", map[string]any{paramOrderRef: "required"})
	}
	return req, nil
}

type Scheduler struct {
	enqueuer queue.Enqueuer
}

func NewScheduler(enqueuer queue.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

func (s *Scheduler) Schedule(ctx context.Context, req ReconcileRequest) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewReconcileMessage(req)
	if err != nil {
		return err
	}
	return s.enqueuer.Enqueue(ctx, msg)
}

type Verifier interface {
	ManualVerify(ctx context.Context, req core.VerifyRequest) (core.VerifyOutcome, error)
}

// Worker verifies reconciliation requests as the system actor. Requests that
// can never succeed are dead-lettered; everything else is requeued with
// backoff until the retry policy gives up.
type Worker struct {
	dequeuer queue.Dequeuer
	verifier Verifier
	policy   RetryPolicy
	hook     worker.Hook
	logger   core.Logger

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*Worker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *Worker) {
		w.hook = hook
	}
}

func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWorker(dequeuer queue.Dequeuer, verifier Verifier, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, core.NewConfigurationError("gojob: dequeuer is required")
	}
	if verifier == nil {
		return nil, core.NewConfigurationError("gojob: verifier is required")
	}
	w := &Worker{
		dequeuer: dequeuer,
		verifier: verifier,
		policy:   DefaultRetryPolicy(),
		logger:   glog.Nop(),
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run processes deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WithContext(ctx).Error("reconcile worker dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessNext handles a single delivery. Only dequeue and ack/nack failures
// are returned; verification failures are reported through the delivery.
func (w *Worker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	logger := w.logger.WithContext(ctx)

	req, err := ReconcileRequestFromMessage(msg)
	if err != nil {
		logger.Warn("reconcile job rejected", "error", err)
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	attempt := w.beginAttempt(req.OrderRef)
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: time.Now()}
	w.onStart(ctx, event)

	outcome, err := w.verifier.ManualVerify(ctx, core.VerifyRequest{
		OrderRef:    req.OrderRef,
		ExternalRef: req.ExternalRef,
		ActorID:     core.SystemActor,
	})
	event.Duration = time.Since(event.StartedAt)
	if err == nil {
		w.finish(req.OrderRef)
		w.onSuccess(ctx, event)
		logger.Info("order reconciled",
			"order_ref", req.OrderRef,
			"status", string(outcome.Order.Status),
			"applied", outcome.Applied,
			"attempt", attempt,
		)
		return delivery.Ack(ctx)
	}

	event.Err = err
	if !retryable(err) {
		w.finish(req.OrderRef)
		w.onFailure(ctx, event)
		logger.Warn("order reconciliation failed permanently", "order_ref", req.OrderRef, "error", err)
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:   w.policy.DelayFor(attempt),
		Requeue: true,
		Reason:  err.Error(),
	}, attempt)
	if opts.Requeue {
		event.Delay = opts.Delay
		w.onRetry(ctx, event)
	} else {
		w.finish(req.OrderRef)
		w.onFailure(ctx, event)
	}
	logger.Warn("order reconciliation failed",
		"order_ref", req.OrderRef,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"error", err,
	)
	return delivery.Nack(ctx, opts)
}

func (w *Worker) beginAttempt(orderRef string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[orderRef]++
	return w.attempts[orderRef]
}

func (w *Worker) finish(orderRef string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, orderRef)
}

func (w *Worker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *Worker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *Worker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *Worker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

// retryable reports whether another attempt could change the outcome.
func retryable(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return true
	}
	switch richErr.Category {
	case goerrors.CategoryBadInput,
		goerrors.CategoryValidation,
		goerrors.CategoryNotFound,
		goerrors.CategoryConflict:
		return false
	}
	return richErr.TextCode != core.ErrorConfiguration
}

// MetricsHook reports worker lifecycle events as reconcile.job.* metrics.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.count(ctx, "reconcile.job.started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.count(ctx, "reconcile.job.succeeded", event)
	h.recorder.ObserveHistogram(ctx, "reconcile.job.duration_ms", float64(event.Duration.Milliseconds()), eventTags(event))
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.count(ctx, "reconcile.job.failed", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.count(ctx, "reconcile.job.retried", event)
}

func (h *MetricsHook) count(ctx context.Context, name string, event worker.Event) {
	if h == nil || h.recorder == nil {
		return
	}
	h.recorder.IncCounter(ctx, name, 1, eventTags(event))
}

func eventTags(event worker.Event) map[string]string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := "unknown"
	if message != nil && strings.TrimSpace(message.JobID) != "" {
		jobID = strings.TrimSpace(message.JobID)
	}
	return map[string]string{"job_id": jobID}
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

var (
	_ worker.Hook = (*MetricsHook)(nil)
	_ Verifier    = (*core.Service)(nil)
)
