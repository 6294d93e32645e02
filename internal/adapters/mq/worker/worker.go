// Package worker runs the goroutines that dispatch queued webhook events.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
	"github.com/okian/stripe-connect/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event abstracts what workers read off the queue.
type Event = model.Event

// Dispatch outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// Handler applies one event. It returns OutcomeProcessed or OutcomeIgnored.
type Handler interface {
	Dispatch(ctx context.Context, e Event) (string, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker pulls events off a queue and hands them to a Handler.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string
	done    chan struct{}
	logger  logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   queue,
		handler: handler,
		name:    "worker",
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until the queue is closed and drained. Cancelling
// ctx does not stop it; only closing the queue does, so every accepted
// event is dispatched.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx = context.WithoutCancel(ctx)
	for e := range w.queue.Dequeue(ctx) {
		w.process(ctx, e)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	outcome, err := w.safeDispatch(ctx, e)
	metrics.RecordWebhookDispatch(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		outcome = OutcomeFailed
		metrics.RecordError("worker", "dispatch_error")
		w.logger.Error(ctx, "webhook dispatch failed",
			logger.String("event_id", e.ID),
			logger.String("type", e.Type),
			logger.String("account", e.Account),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "webhook dispatched",
			logger.String("event_id", e.ID),
			logger.String("type", e.Type),
			logger.String("outcome", outcome),
		)
	}
	metrics.RecordWebhookEvent(e.Type, outcome)
}

// safeDispatch turns a handler panic into an error so one bad event does
// not take the worker down.
func (w *InMemoryWorker) safeDispatch(ctx context.Context, e Event) (outcome string, err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handler.Dispatch(ctx, e)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	once    sync.Once
	logger  logger.Logger
}

// NewPool creates workerCount workers reading from queue.
func NewPool(workerCount int, queue Queue, handler Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, handler, wopts...)
	}
	metrics.UpdateWebhookWorkers(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown closes the queue, if it can be closed, and waits for the
// workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker shutdown: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWebhookWorkers(0)
	return nil
}
