package gojob

import (
	"context"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// MemoryQueue is an in-process go-job queue for a single reconcile worker.
// A message whose idempotency key is already queued or in flight is dropped
// on Enqueue.
type MemoryQueue struct {
	mu     sync.Mutex
	ready  []*job.ExecutionMessage
	keys   map[string]struct{}
	dead   []*job.ExecutionMessage
	signal chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		keys:   map[string]struct{}{},
		signal: make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return nil
	}
	q.mu.Lock()
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" {
		if _, queued := q.keys[key]; queued {
			q.mu.Unlock()
			return nil
		}
		q.keys[key] = struct{}{}
	}
	q.ready = append(q.ready, msg)
	q.mu.Unlock()
	q.wake()
	return nil
}

// Dequeue blocks until a message is ready or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			msg := q.ready[0]
			q.ready = q.ready[1:]
			q.mu.Unlock()
			return &memoryDelivery{queue: q, msg: msg}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports messages waiting for a worker.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.dead...)
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage) {
	q.mu.Lock()
	q.ready = append(q.ready, msg)
	q.mu.Unlock()
	q.wake()
}

func (q *MemoryQueue) release(msg *job.ExecutionMessage, deadLetter bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.keys, strings.TrimSpace(msg.IdempotencyKey))
	if deadLetter {
		q.dead = append(q.dead, msg)
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() {
		d.queue.release(d.msg, false)
	})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() {
		if !opts.Requeue || opts.DeadLetter {
			d.queue.release(d.msg, opts.DeadLetter)
			return
		}
		if opts.Delay <= 0 {
			d.queue.requeue(d.msg)
			return
		}
		time.AfterFunc(opts.Delay, func() { d.queue.requeue(d.msg) })
	})
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
)
