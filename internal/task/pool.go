package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler executes one task. Handlers must be idempotent: a task may be
// retried after a partial failure.
type Handler func(ctx context.Context, t Task) error

// Pool runs queued tasks on a fixed set of workers with bounded retries.
type Pool struct {
	queue      *ChanQueue
	handlers   map[string]Handler
	workers    int
	maxRetries int
	backoff    time.Duration
	lg         *zap.Logger
}

// NewPool returns a pool draining the given queue with the given number of
// workers.
func NewPool(queue *ChanQueue, workers int, lg *zap.Logger) *Pool {
	return &Pool{
		queue:      queue,
		handlers:   make(map[string]Handler),
		workers:    workers,
		maxRetries: 3,
		backoff:    time.Second,
		lg:         lg,
	}
}

// Register binds a handler to a task name. Must be called before Run.
func (p *Pool) Register(name string, h Handler) {
	p.handlers[name] = h
}

// Run blocks draining the queue until ctx is cancelled. Task failures are
// retried with linear backoff and then dropped with a log entry; they never
// stop the pool.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t := <-p.queue.Tasks():
					p.process(ctx, t)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pool) process(ctx context.Context, t Task) {
	h, ok := p.handlers[t.Name]
	if !ok {
		p.lg.Warn("No handler registered for task", zap.String("task", t.Name))
		return
	}
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}
		if err = h(ctx, t); err == nil {
			return
		}
		p.lg.Warn("Task attempt failed",
			zap.String("task", t.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	p.lg.Error("Task dropped after retries",
		zap.String("task", t.Name),
		zap.Error(err))
}
