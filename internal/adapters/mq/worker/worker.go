// Package worker drains the dispatch queue and hands accepted submissions
// to a Publisher.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/codegolf/internal/domain/model"
	"github.com/okian/codegolf/pkg/logger"
	"github.com/okian/codegolf/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Publisher delivers an accepted submission downstream.
type Publisher interface {
	Publish(ctx context.Context, s model.Submission) error
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Worker dispatches queued submissions until the queue closes or ctx ends.
type Worker interface {
	Run(ctx context.Context)
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string
	logger    logger.Logger

	published *atomic.Int64
	failed    *atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: p,
		name:      "worker",
		published: &atomic.Int64{},
		failed:    &atomic.Int64{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("dispatch").Named(w.name)
	}
	return w
}

// Run implements Worker.Run. Publish failures are logged and counted; they
// never stop the loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	in := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			if err := w.dispatch(ctx, s); err != nil {
				w.logger.Error(ctx, "dispatch failed",
					logger.String("submission_id", s.ID),
					logger.Int("challenge_id", s.ChallengeID),
					logger.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) dispatch(ctx context.Context, s model.Submission) error { //nolint:gocritic // value semantics on the channel
	start := time.Now()
	err := w.publisher.Publish(ctx, s)
	metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		w.failed.Add(1)
		metrics.RecordDispatchError()
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish submission %s: %w", s.ID, err)
	}
	w.published.Add(1)
	metrics.RecordDispatchPublished()
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	published atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a worker pool. workerCount < 1 uses one worker per CPU.
func NewPool(workerCount int, q Queue, p Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("dispatch-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
		w.published = &pool.published
		w.failed = &pool.failed
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Published returns how many submissions were handed off successfully.
func (p *Pool) Published() int64 { return p.published.Load() }

// Failed returns how many publishes failed.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown closes the queue and waits for workers to drain what is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("dispatch pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}
