package prober

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ipfsprobe/internal/log"
	"github.com/nao1215/ipfsprobe/internal/retry"
)

func newTestPeerProber(gw *fakeGateway, opts ...Option) *PeerProber {
	base := []Option{WithSleep(noSleep), WithLogger(discardLogger())}
	return NewPeerProber(gw, retry.NewPolicy(1), append(base, opts...)...)
}

func TestPeerProber_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		steps     []step
		wantOK    bool
		wantIP    string
		wantCalls int
	}{
		{
			name:      "loopback and unspecified only",
			steps:     []step{{lines: []string{"/ip4/127.0.0.1/tcp/4001", "/ip4/0.0.0.0/tcp/4001"}}},
			wantOK:    false,
			wantCalls: 3,
		},
		{
			name: "mixed list picks the valid TCP entry",
			steps: []step{{lines: []string{
				"/ip4/127.0.0.1/tcp/4001",
				"/ip4/198.51.100.4/udp/4001/quic-v1",
				"/ip4/203.0.113.9/tcp/4001",
				"/ip4/192.0.2.1/tcp/4001",
			}}},
			wantOK:    true,
			wantIP:    "203.0.113.9",
			wantCalls: 1,
		},
		{
			name: "succeeds on third attempt",
			steps: []step{
				{err: errLookup},
				{lines: []string{"/ip4/127.0.0.1/tcp/4001"}},
				{lines: []string{"/ip4/203.0.113.9/tcp/4001"}},
			},
			wantOK:    true,
			wantIP:    "203.0.113.9",
			wantCalls: 3,
		},
		{
			name:      "every attempt fails",
			steps:     []step{{err: errLookup}},
			wantOK:    false,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw := newFakeGateway()
			gw.peers["P"] = tt.steps

			got := newTestPeerProber(gw).Probe(context.Background(), "P", 4)

			if got.ProviderID != "P" || got.Appearances != 4 {
				t.Errorf("result key = %q/%d, want P/4", got.ProviderID, got.Appearances)
			}
			if got.Reachable != tt.wantOK {
				t.Errorf("Reachable = %v, want %v", got.Reachable, tt.wantOK)
			}
			if got.IPAddress != tt.wantIP {
				t.Errorf("IPAddress = %q, want %q", got.IPAddress, tt.wantIP)
			}
			if n := gw.count("findpeer", "P"); n != tt.wantCalls {
				t.Errorf("findpeer calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestPeerProber_AttemptBudget(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.peers["P"] = []step{{err: errLookup}}

	newTestPeerProber(gw, WithPeerAttempts(5)).Probe(context.Background(), "P", 1)

	if n := gw.count("findpeer", "P"); n != 5 {
		t.Errorf("findpeer calls = %d, want 5", n)
	}
}

func TestPeerLookupWaitsFollowPolicy(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.peers["P"] = []step{{err: errLookup}, {lines: []string{"/ip4/127.0.0.1/tcp/4001"}}, {lines: []string{"/ip4/198.51.100.9/tcp/4001"}}}

	rec := &sleepRecorder{}
	got := NewPeerProber(gw, retry.NewPolicy(5), WithSleep(rec.sleep), WithLogger(discardLogger()), WithPeerAttempts(4)).
		Probe(context.Background(), "P", 1)

	if !got.Reachable || got.IPAddress != "198.51.100.9" {
		t.Fatalf("result = %+v", got)
	}
	ref := retry.NewPolicy(5)
	want := []time.Duration{ref.Jitter(), ref.Jitter(), ref.Jitter()}
	if !slices.Equal(rec.waits, want) {
		t.Errorf("waits = %v, want %v", rec.waits, want)
	}
}

func TestPeerProber_LogsUnreachable(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.peers["QmPeer"] = []step{{lines: []string{"/ip4/127.0.0.1/tcp/4001"}}}

	var buf bytes.Buffer
	logger := log.NewLogger(&buf, false)
	newTestPeerProber(gw, WithLogger(logger)).Probe(context.Background(), "QmPeer", 1)

	out := buf.String()
	if !strings.Contains(out, "no suitable connection possible") {
		t.Errorf("missing unreachable log: %s", out)
	}
	if !strings.Contains(out, "QmPeer") {
		t.Errorf("log should name the peer: %s", out)
	}
}
