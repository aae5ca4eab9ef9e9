package retry

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultMaxJitter is the upper bound (exclusive) of the jitter wait.
const DefaultMaxJitter = 5 * time.Second

// Outcome is the decision for one finished attempt.
type Outcome struct {
	// ShouldRetry reports whether another attempt is allowed.
	ShouldRetry bool

	// Wait is the delay before the next attempt.
	Wait time.Duration
}

// Policy makes retry decisions. It is safe for concurrent use; the random
// source is shared by all workers and guarded by a mutex.
type Policy struct {
	maxJitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxJitter sets the exclusive upper bound of the jitter wait.
// A zero value disables waiting entirely. Negative values are ignored.
func WithMaxJitter(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.maxJitter = d
		}
	}
}

// NewPolicy creates a Policy whose jitter is drawn from a PCG generator
// seeded with seed, so that two policies with the same seed produce the same
// sequence of waits.
func NewPolicy(seed int64, opts ...Option) *Policy {
	p := &Policy{
		maxJitter: DefaultMaxJitter,
		rng:       rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)), //nolint:gosec // jitter, not security
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide returns the decision after attempt (zero-based) has failed, given
// that at most maxAttempts attempts are allowed in total.
// A new jitter value is drawn on every call.
func (p *Policy) Decide(attempt, maxAttempts int) Outcome {
	return Outcome{
		ShouldRetry: attempt < maxAttempts-1,
		Wait:        p.Jitter(),
	}
}

// Jitter returns a uniform random duration in [0, maxJitter).
func (p *Policy) Jitter() time.Duration {
	if p.maxJitter <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rng.Int64N(int64(p.maxJitter)))
}

// MaxJitter returns the configured jitter bound.
func (p *Policy) MaxJitter() time.Duration {
	return p.maxJitter
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d. It returns ctx.Err() if the context is done first.
// Non-positive durations return immediately unless the context is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
