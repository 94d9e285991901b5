// Package worker runs rating jobs on activity-sharded workers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/skillboard/internal/adapters/mq/queue"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

// Handler executes a single job.
type Handler interface {
	Handle(ctx context.Context, job queue.Job) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job queue.Job) (any, error)

// Handle calls f(ctx, job).
func (f HandlerFunc) Handle(ctx context.Context, job queue.Job) (any, error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	return f(ctx, job)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs off a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for a single queue.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Discard(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, job)
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	value, err := w.handler.Handle(ctx, job)

	status := "ok"
	if err != nil {
		status = "error"
		w.logger.Error(ctx, "job failed",
			logger.String("job_id", job.ID.String()),
			logger.String("kind", string(job.Kind)),
			logger.String("activity", string(job.Activity)),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "job done",
			logger.String("job_id", job.ID.String()),
			logger.String("kind", string(job.Kind)),
		)
	}
	metrics.RecordJobProcessed(string(job.Kind), status)
	if !job.EnqueuedAt.IsZero() {
		metrics.RecordJobLatency(string(job.Kind), time.Since(job.EnqueuedAt))
	}

	if job.Reply == nil {
		return
	}
	select {
	case job.Reply <- queue.Result{JobID: job.ID, Value: value, Err: err}:
	default:
		w.logger.Warn(ctx, "reply dropped", logger.String("job_id", job.ID.String()))
	}
}
