package prober

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/ipfsprobe/internal/gateway"
)

var errLookup = errors.New("lookup failed")

// step is one scripted gateway answer.
type step struct {
	ids   []string
	lines []string
	resp  *gateway.Response
	err   error
}

// fakeGateway answers each key with its scripted steps in order. Once a
// script is exhausted its last step repeats. Unscripted keys fail.
type fakeGateway struct {
	mu        sync.Mutex
	fetch     map[string][]step
	providers map[string][]step
	peers     map[string][]step
	calls     map[string]int
	delay     func() time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		fetch:     make(map[string][]step),
		providers: make(map[string][]step),
		peers:     make(map[string][]step),
		calls:     make(map[string]int),
	}
}

func (f *fakeGateway) next(script map[string][]step, op, key string) (step, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[op+":"+key]
	f.calls[op+":"+key]++
	steps, ok := script[key]
	if !ok || len(steps) == 0 {
		return step{}, false
	}
	return steps[min(n, len(steps)-1)], true
}

func (f *fakeGateway) count(op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+key]
}

func (f *fakeGateway) wait(ctx context.Context) error {
	if f.delay == nil {
		return nil
	}
	select {
	case <-time.After(f.delay()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeGateway) Fetch(ctx context.Context, url string) (*gateway.Response, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	s, ok := f.next(f.fetch, "fetch", url)
	if !ok {
		return &gateway.Response{StatusCode: 200, Body: []byte("<h1>ok</h1>")}, nil
	}
	return s.resp, s.err
}

func (f *fakeGateway) FindProviders(ctx context.Context, cid string) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	s, ok := f.next(f.providers, "findprovs", cid)
	if !ok {
		return nil, errLookup
	}
	return s.ids, s.err
}

func (f *fakeGateway) FindPeerAddress(ctx context.Context, peerID string) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	s, ok := f.next(f.peers, "findpeer", peerID)
	if !ok {
		return nil, errLookup
	}
	return s.lines, s.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sleepRecorder collects every wait handed to the sleep hook.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}
