package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"

	"github.com/okian/skillboard/internal/adapters/mq/queue"
	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/pkg/logger"
	"github.com/okian/skillboard/pkg/metrics"
)

const defaultShardQueueSize = 256

// ErrNoReply is returned by Do when a job finished without a result.
var ErrNoReply = errors.New("job finished without reply")

type shard struct {
	queue  *queue.InMemoryQueue
	worker *InMemoryWorker
}

// Pool runs one worker per shard. Jobs for the same activity always land on
// the same shard, so they execute one at a time in submission order.
type Pool struct {
	shards    []shard
	queueSize int
	logger    logger.Logger
}

// NewPool creates a pool of n shards. n < 1 means runtime.NumCPU().
func NewPool(n int, handler Handler, opts ...PoolOption) *Pool {
	if n < 1 {
		n = runtime.NumCPU()
	}

	p := &Pool{
		queueSize: defaultShardQueueSize,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.shards = make([]shard, n)
	for i := range p.shards {
		q := queue.NewInMemoryQueue(queue.WithCapacity(p.queueSize))
		p.shards[i] = shard{
			queue: q,
			worker: NewInMemoryWorker(q, handler,
				WithName("worker-"+strconv.Itoa(i)),
				WithLogger(p.logger),
			),
		}
	}
	metrics.UpdateQueueCapacity(n * p.queueSize)

	return p
}

// Size returns the number of shards.
func (p *Pool) Size() int {
	return len(p.shards)
}

// Shard returns the shard index jobs for activity are routed to.
func (p *Pool) Shard(activity model.ActivityID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(activity))
	return int(h.Sum32() % uint32(len(p.shards))) //nolint:gosec // shard count is small and positive
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, s := range p.shards {
		go s.worker.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.shards))
	p.logger.Info(ctx, "worker pool started", logger.Int("shards", len(p.shards)))
}

// Submit enqueues job on its activity's shard.
func (p *Pool) Submit(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	idx := p.Shard(job.Activity)
	if err := p.shards[idx].queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("submit %s job for %q: %w", job.Kind, job.Activity, err)
	}
	return nil
}

// Do submits job and waits for its result.
func (p *Pool) Do(ctx context.Context, job queue.Job) (any, error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if job.Reply == nil {
		job.Reply = make(chan queue.Result, 1)
	}
	if err := p.Submit(ctx, job); err != nil {
		return nil, err
	}

	select {
	case res, ok := <-job.Reply:
		if !ok {
			return nil, ErrNoReply
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes every shard queue and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, s := range p.shards {
		if err := s.queue.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, s := range p.shards {
		select {
		case <-s.worker.Done():
		case <-ctx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut {
		return fmt.Errorf("pool shutdown: %w", ctx.Err())
	}
	return nil
}
