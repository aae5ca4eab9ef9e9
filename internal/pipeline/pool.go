package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the pool size used when none is configured.
const DefaultConcurrency = 10

// PoolOption configures Stream and Collect.
type PoolOption func(*pool)

type pool struct {
	concurrency int
	logger      *slog.Logger
	name        string
}

// WithConcurrency caps the number of executors. The pool never starts more
// executors than there are items.
func WithConcurrency(n int) PoolOption {
	return func(p *pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolLogger sets the logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *pool) {
		p.logger = logger
	}
}

// WithPoolName names the pool in log output.
func WithPoolName(name string) PoolOption {
	return func(p *pool) {
		p.name = name
	}
}

func newPool(opts []PoolOption) *pool {
	p := &pool{concurrency: DefaultConcurrency, name: "pool"}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Stream runs worker over items on min(concurrency, len(items)) executors.
// Each executor takes the next unprocessed item from a shared queue and runs
// worker to completion before taking another. onResult is called once per
// item, in completion order, from a single goroutine, so it may touch state
// without locking.
//
// Every item is handed to worker even after ctx is done; workers are
// expected to return promptly in that case. Stream returns ctx.Err() once
// all results have been delivered.
func Stream[T, R any](ctx context.Context, items []T, worker func(context.Context, T) R, onResult func(R), opts ...PoolOption) error {
	p := newPool(opts)
	if len(items) == 0 {
		return ctx.Err()
	}

	executors := min(p.concurrency, len(items))
	p.logger.Info("starting pool",
		"pool", p.name,
		"items", len(items),
		"executors", executors,
	)
	start := time.Now()

	queue := make(chan T)
	results := make(chan R, executors)

	var g errgroup.Group
	g.SetLimit(executors + 1)
	g.Go(func() error {
		defer close(queue)
		for _, item := range items {
			queue <- item
		}
		return nil
	})
	for range executors {
		g.Go(func() error {
			for item := range queue {
				results <- worker(ctx, item)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait() //nolint:errcheck // executors never fail
		close(results)
	}()

	done := 0
	for r := range results {
		onResult(r)
		done++
		p.logger.Debug("item finished", "pool", p.name, "done", done, "total", len(items))
	}

	p.logger.Info("pool finished",
		"pool", p.name,
		"items", len(items),
		"elapsed", time.Since(start),
	)
	return ctx.Err()
}

// Collect runs Stream and returns the results in completion order.
func Collect[T, R any](ctx context.Context, items []T, worker func(context.Context, T) R, opts ...PoolOption) ([]R, error) {
	out := make([]R, 0, len(items))
	err := Stream(ctx, items, worker, func(r R) {
		out = append(out, r)
	}, opts...)
	return out, err
}
