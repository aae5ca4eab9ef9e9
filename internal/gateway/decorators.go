package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/ipfsprobe/internal/metrics"
)

// RateLimited returns a Gateway whose daemon lookups wait for limiter.
// Website fetches go to public gateways and are not limited.
// A nil limiter returns next unchanged.
func RateLimited(next Gateway, limiter *rate.Limiter) Gateway {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

type rateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

func (r *rateLimited) Fetch(ctx context.Context, url string) (*Response, error) {
	return r.next.Fetch(ctx, url)
}

func (r *rateLimited) FindProviders(ctx context.Context, cid string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.FindProviders(ctx, cid)
}

func (r *rateLimited) FindPeerAddress(ctx context.Context, peerID string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.FindPeerAddress(ctx, peerID)
}

// NewLimiter returns a limiter allowing perSecond daemon calls, or nil
// when perSecond is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := max(int(perSecond), 1)
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Instrumented returns a Gateway that records the outcome and latency of
// every call in m. A nil m returns next unchanged.
func Instrumented(next Gateway, m *metrics.Metrics) Gateway {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

type instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
}

func (i *instrumented) Fetch(ctx context.Context, url string) (*Response, error) {
	start := time.Now()
	resp, err := i.next.Fetch(ctx, url)
	i.metrics.ObserveCall(metrics.OpFetch, time.Since(start), err)
	return resp, err
}

func (i *instrumented) FindProviders(ctx context.Context, cid string) ([]string, error) {
	start := time.Now()
	ids, err := i.next.FindProviders(ctx, cid)
	i.metrics.ObserveCall(metrics.OpFindProviders, time.Since(start), err)
	return ids, err
}

func (i *instrumented) FindPeerAddress(ctx context.Context, peerID string) ([]string, error) {
	start := time.Now()
	lines, err := i.next.FindPeerAddress(ctx, peerID)
	i.metrics.ObserveCall(metrics.OpFindPeer, time.Since(start), err)
	return lines, err
}
