package measure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/metrics"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/prober"
)

const (
	peerA = "QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN"
	peerB = "12D3KooWDpJ7As7BWAwRMfu1VU2WCqNjvq387JEYKDBj4kx6nXTN"
)

var errDown = errors.New("daemon down")

// staticGateway serves every website with 200, gives every CID the same
// providers and resolves peerA only.
type staticGateway struct {
	mu        sync.Mutex
	lookups   map[string]int
	providers []string
}

func newStaticGateway() *staticGateway {
	return &staticGateway{lookups: make(map[string]int), providers: []string{peerA, peerB}}
}

func (g *staticGateway) Fetch(context.Context, string) (*gateway.Response, error) {
	return &gateway.Response{StatusCode: 200}, nil
}

func (g *staticGateway) FindProviders(_ context.Context, cid string) ([]string, error) {
	g.mu.Lock()
	g.lookups[cid]++
	g.mu.Unlock()
	return g.providers, nil
}

func (g *staticGateway) FindPeerAddress(_ context.Context, peerID string) ([]string, error) {
	if peerID == peerA {
		return []string{"/ip4/198.51.100.4/tcp/4001"}, nil
	}
	return nil, errDown
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

func writeDataset(t *testing.T, rows int) string {
	t.Helper()

	inputs := make([]model.SampleInput, rows)
	for i := range rows {
		inputs[i] = model.SampleInput{
			OriginalLink: "en.wikipedia-on-ipfs.org/wiki/Article_" + string(rune('A'+i)),
			ResolvedCID:  "cid" + string(rune('A'+i)),
		}
	}
	path := filepath.Join(t.TempDir(), "en.wikipedia-on-ipfs.org_links_1_CID.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := dataset.Write(f, inputs); err != nil {
		t.Fatal(err)
	}
	return path
}

type memoryStore struct {
	saved []*model.Measurement
}

func (s *memoryStore) SaveMeasurement(_ context.Context, m *model.Measurement) (int64, error) {
	s.saved = append(s.saved, m)
	return int64(len(s.saved)), nil
}

type memoryExporter struct {
	exported int
}

func (e *memoryExporter) Export(context.Context, *model.Measurement) ([]string, error) {
	e.exported++
	return []string{"items.csv", "providers.csv"}, nil
}

func newTestRunner(gw gateway.Gateway, opts ...RunnerOption) *Runner {
	base := []RunnerOption{
		WithLogger(quietLogger()),
		WithReadOptions(dataset.WithCIDValidation(false)),
		WithProberOptions(prober.WithSleep(noSleep)),
	}
	return NewRunner(gw, append(base, opts...)...)
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, 5)
	store := &memoryStore{}
	exporter := &memoryExporter{}
	mt := metrics.New()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

	r := newTestRunner(newStaticGateway(),
		WithStore(store),
		WithExporter(exporter),
		WithMetrics(mt),
		WithClock(mock),
		WithConcurrency(2, 2),
	)
	run, err := r.Run(context.Background(), Job{Dataset: "en", File: path, Label: "test", SampleSize: 3, Seed: 42})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m := run.Measurement
	if m.TotalRows != 5 || len(m.Inputs) != 3 || len(m.Items) != 3 {
		t.Errorf("rows/inputs/items = %d/%d/%d, want 5/3/3", m.TotalRows, len(m.Inputs), len(m.Items))
	}
	if run.Tally.Count(peerA) != 3 || run.Tally.Count(peerB) != 3 {
		t.Errorf("tally = %v", run.Tally.Snapshot())
	}
	if len(m.Peers) != 2 {
		t.Fatalf("len(Peers) = %d, want 2", len(m.Peers))
	}
	if !m.StartedAt.Equal(mock.Now()) {
		t.Errorf("StartedAt = %v, want mock time", m.StartedAt)
	}
	if len(store.saved) != 1 || exporter.exported != 1 || len(run.Files) != 2 {
		t.Errorf("saved=%d exported=%d files=%v", len(store.saved), exporter.exported, run.Files)
	}
	wantSteps := []string{"load", "sample", "probe_items", "probe_peers", "export", "persist"}
	if len(run.Steps) != len(wantSteps) {
		t.Errorf("Steps = %v, want %v", run.Steps, wantSteps)
	}
	if got := testutil.ToFloat64(mt.RunCounter(StatusOK)); got != 1 {
		t.Errorf("ok runs = %v, want 1", got)
	}
}

func TestRunnerSameSeedSameSample(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, 20)
	r := newTestRunner(newStaticGateway())

	sample := func(seed int64) []model.SampleInput {
		run, err := r.Run(context.Background(), Job{Dataset: "en", File: path, SampleSize: 5, Seed: seed})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return run.Measurement.Inputs
	}

	first, replay := sample(7), sample(7)
	for i := range first {
		if first[i] != replay[i] {
			t.Fatalf("replay with the same seed drew a different sample: %v vs %v", first, replay)
		}
	}
}

func TestRunnerFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing dataset", func(t *testing.T) {
		t.Parallel()

		mt := metrics.New()
		r := newTestRunner(newStaticGateway(), WithMetrics(mt))
		run, err := r.Run(context.Background(), Job{Dataset: "en", File: filepath.Join(t.TempDir(), "none.csv")})
		if err == nil {
			t.Fatal("expected error for missing dataset")
		}
		if run == nil || len(run.Steps) != 0 {
			t.Errorf("run = %+v", run)
		}
		if got := testutil.ToFloat64(mt.RunCounter(StatusFailed)); got != 1 {
			t.Errorf("failed runs = %v, want 1", got)
		}
	})

	t.Run("oversized sample", func(t *testing.T) {
		t.Parallel()

		path := writeDataset(t, 2)
		r := newTestRunner(newStaticGateway())
		_, err := r.Run(context.Background(), Job{Dataset: "en", File: path, SampleSize: 3})
		if !errors.Is(err, dataset.ErrSampleTooLarge) {
			t.Errorf("Run() error = %v, want ErrSampleTooLarge", err)
		}
	})
}
