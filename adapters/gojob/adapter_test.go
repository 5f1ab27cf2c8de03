package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-reconcile/core"
)

func TestReconcileMessageRoundTrip(t *testing.T) {
	msg, err := NewReconcileMessage(ReconcileRequest{
		OrderRef:    " TKZ-2026-000001 ",
		ExternalRef: "EXT-1",
		TenantID:    "G1",
	})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.JobID != JobIDReconcileOrder {
		t.Fatalf("expected job id %q, got %q", JobIDReconcileOrder, msg.JobID)
	}
	if msg.IdempotencyKey != "orders.reconcile:TKZ-2026-000001" {
		t.Fatalf("unexpected idempotency key %q", msg.IdempotencyKey)
	}
	req, err := ReconcileRequestFromMessage(msg)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if req.OrderRef != "TKZ-2026-000001" || req.ExternalRef != "EXT-1" || req.TenantID != "G1" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := NewReconcileMessage(ReconcileRequest{}); err == nil {
		t.Fatalf("expected missing order ref error")
	}
	if _, err := ReconcileRequestFromMessage(&job.ExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected unsupported job error")
	}
}

func TestSchedulerEnqueuesReconcileMessage(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	if err := NewScheduler(enqueuer).Schedule(context.Background(), ReconcileRequest{OrderRef: "TKZ-2026-000002"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.Parameters["order_ref"] != "TKZ-2026-000002" {
		t.Fatalf("expected reconcile message, got %+v", enqueuer.last)
	}
	if err := NewScheduler(nil).Schedule(context.Background(), ReconcileRequest{OrderRef: "x"}); err == nil {
		t.Fatalf("expected missing enqueuer error")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	}

	opts := policy.NormalizeAttempt(queue.NackOptions{Delay: 30 * time.Second, Requeue: true, Reason: " transient "}, 1)
	if opts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", opts.Delay)
	}
	if !opts.Requeue || opts.Reason != "transient" {
		t.Fatalf("expected requeue before max attempts, got %+v", opts)
	}

	opts = policy.NormalizeAttempt(queue.NackOptions{Delay: time.Second, Requeue: true}, 3)
	if opts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !opts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestRetryPolicyDelayDoublesUpToMax(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	cases := map[int]time.Duration{0: 0, 1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 4: 5 * time.Second, 9: 5 * time.Second}
	for attempt, want := range cases {
		if got := policy.DelayFor(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}

func TestWorkerAcksVerifiedOrder(t *testing.T) {
	delivery := newReconcileDelivery(t, "TKZ-2026-000001")
	verifier := &stubVerifier{outcome: core.VerifyOutcome{Order: core.Order{Ref: "TKZ-2026-000001", Status: core.OrderStatusPaid}, Applied: true}}
	hook := &capturingHook{}
	w, err := NewWorker(&stubQueueDequeuer{delivery: delivery}, verifier, WithHook(hook))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected ack")
	}
	if len(verifier.requests) != 1 || verifier.requests[0].ActorID != core.SystemActor {
		t.Fatalf("expected system actor verification, got %+v", verifier.requests)
	}
	if hook.starts != 1 || hook.successes != 1 {
		t.Fatalf("unexpected hook counts: %+v", hook)
	}
}

func TestWorkerRequeuesRemoteFailuresUntilBound(t *testing.T) {
	delivery := newReconcileDelivery(t, "TKZ-2026-000003")
	verifier := &stubVerifier{err: core.NewRemoteUnavailableError(errors.New("timeout"), 3)}
	hook := &capturingHook{}
	w, err := NewWorker(&stubQueueDequeuer{delivery: delivery}, verifier,
		WithHook(hook),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, DeadLetterOnMax: true}),
	)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.Delay != time.Second {
		t.Fatalf("expected delayed requeue, got %+v", delivery.nackOpts)
	}
	if hook.last.Attempt != 1 || hook.retries != 1 {
		t.Fatalf("expected retry hook on attempt 1, got %+v", hook)
	}

	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at bound, got %+v", delivery.nackOpts)
	}
	if hook.failures != 1 {
		t.Fatalf("expected failure hook, got %+v", hook)
	}
}

func TestWorkerDeadLettersPermanentFailures(t *testing.T) {
	delivery := newReconcileDelivery(t, "TKZ-2026-000004")
	verifier := &stubVerifier{err: core.NewNotFoundError("order not found", nil)}
	w, err := NewWorker(&stubQueueDequeuer{delivery: delivery}, verifier)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nackOpts.DeadLetter || delivery.nackOpts.Requeue {
		t.Fatalf("expected dead letter, got %+v", delivery.nackOpts)
	}
}

func TestWorkerDeadLettersForeignJobs(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: "other.job"}}
	verifier := &stubVerifier{}
	w, err := NewWorker(&stubQueueDequeuer{delivery: delivery}, verifier)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter for foreign job")
	}
	if len(verifier.requests) != 0 {
		t.Fatalf("expected no verification")
	}
}

func TestMetricsHookRecordsLifecycle(t *testing.T) {
	recorder := &capturingRecorder{counters: map[string]int64{}}
	hook := NewMetricsHook(recorder)
	event := worker.Event{Message: &job.ExecutionMessage{JobID: JobIDReconcileOrder}, Duration: 40 * time.Millisecond}

	hook.OnStart(context.Background(), event)
	hook.OnSuccess(context.Background(), event)
	hook.OnRetry(context.Background(), event)
	hook.OnFailure(context.Background(), event)

	for _, name := range []string{"reconcile.job.started", "reconcile.job.succeeded", "reconcile.job.retried", "reconcile.job.failed"} {
		if recorder.counters[name] != 1 {
			t.Fatalf("expected %s=1, got %d", name, recorder.counters[name])
		}
	}
	if recorder.lastTags["job_id"] != JobIDReconcileOrder {
		t.Fatalf("unexpected tags %v", recorder.lastTags)
	}
	if recorder.histograms != 1 {
		t.Fatalf("expected one duration observation, got %d", recorder.histograms)
	}
}

func newReconcileDelivery(t *testing.T, orderRef string) *stubQueueDelivery {
	t.Helper()
	msg, err := NewReconcileMessage(ReconcileRequest{OrderRef: orderRef})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return &stubQueueDelivery{msg: msg}
}

type stubVerifier struct {
	requests []core.VerifyRequest
	outcome  core.VerifyOutcome
	err      error
}

func (s *stubVerifier) ManualVerify(_ context.Context, req core.VerifyRequest) (core.VerifyOutcome, error) {
	s.requests = append(s.requests, req)
	return s.outcome, s.err
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	starts    int
	successes int
	failures  int
	retries   int
	last      worker.Event
}

func (h *capturingHook) OnStart(_ context.Context, event worker.Event) {
	h.starts++
	h.last = event
}

func (h *capturingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.successes++
	h.last = event
}

func (h *capturingHook) OnFailure(_ context.Context, event worker.Event) {
	h.failures++
	h.last = event
}

func (h *capturingHook) OnRetry(_ context.Context, event worker.Event) {
	h.retries++
	h.last = event
}

type capturingRecorder struct {
	counters   map[string]int64
	histograms int
	lastTags   map[string]string
}

func (r *capturingRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	r.counters[name] += value
	r.lastTags = tags
}

func (r *capturingRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {
	r.histograms++
}
