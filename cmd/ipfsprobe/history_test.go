package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/database"
	"github.com/nao1215/ipfsprobe/internal/model"
)

const testPeer = "12D3KooWDpJ7As7BWAwRMfu1VU2WCqNjvq387JEYKDBj4kx6nXTN"

// historyDB returns a database holding three runs of "en" and one of "tr".
func historyDB(t *testing.T) *database.MeasurementDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	save := func(ds string, hour int, reachable bool) {
		m := model.NewMeasurement(ds, "hourly", int64(hour), 1)
		m.StartedAt = start.Add(time.Duration(hour) * time.Hour)
		m.FinishedAt = m.StartedAt.Add(time.Minute)
		m.TotalRows = 10
		m.Items = []model.ItemResult{{
			OriginalLink:     ds + ".wikipedia-on-ipfs.org/wiki/Go",
			ResolvedCID:      testCIDv1,
			WebsiteReachable: true,
			ProviderCount:    1,
			ProviderIDs:      []string{testPeer},
			HadProviders:     true,
		}}
		peer := model.PeerResult{ProviderID: testPeer, Appearances: 1, Reachable: reachable}
		if reachable {
			peer.IPAddress = "203.0.113.9"
		}
		m.Peers = []model.PeerResult{peer}
		if _, err := db.SaveMeasurement(context.Background(), m); err != nil {
			t.Fatalf("failed to save measurement: %v", err)
		}
	}
	save("en", 0, true)
	save("en", 1, false)
	save("en", 2, true)
	save("tr", 3, true)
	return db
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	db := historyDB(t)
	ctx := context.Background()

	t.Run("table with moving averages", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{dataset: "en", window: 2}
		if err := runHistory(ctx, db, config.NewConfig(), opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 runs, got:\n%s", out.String())
		}
		if !strings.HasSuffix(strings.TrimSpace(lines[1]), "-") {
			t.Errorf("expected no average for the first run, got %q", lines[1])
		}
		if !strings.Contains(lines[2], "0.5") {
			t.Errorf("expected an average of 0.5 reachable peers, got %q", lines[2])
		}
	})

	t.Run("json with limit", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.JSONReport = true

		var out bytes.Buffer
		opts := historyOptions{dataset: "en", limit: 2, window: model.DefaultHistoryWindow}
		if err := runHistory(ctx, db, cfg, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var points []model.HistoryPoint
		if err := json.Unmarshal(out.Bytes(), &points); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out.String())
		}
		if len(points) != 2 {
			t.Fatalf("expected 2 points, got %d", len(points))
		}
		if !points[0].StartedAt.Before(points[1].StartedAt) {
			t.Error("expected points oldest first")
		}
		if points[1].Seed != 2 {
			t.Errorf("expected the most recent run last, got seed %d", points[1].Seed)
		}
	})

	t.Run("list datasets", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := runHistory(ctx, db, config.NewConfig(), historyOptions{listDatasets: true, window: 1}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Fields(out.String()); len(got) != 2 || got[0] != "en" || got[1] != "tr" {
			t.Errorf("datasets = %v", got)
		}
	})

	t.Run("provider history", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := runHistory(ctx, db, config.NewConfig(), historyOptions{provider: testPeer, window: 1}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Seen in runs: 4", "Reachable in runs: 3"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("expected %q in %q", want, out.String())
			}
		}
	})

	t.Run("no runs", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := runHistory(ctx, db, config.NewConfig(), historyOptions{dataset: "fa", window: 1}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No measurements found") {
			t.Errorf("unexpected output %q", out.String())
		}
	})
}

func TestHistoryOptionsFrom(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		opts, err := historyOptionsFrom(parsedSubcommand(t, "history"), []string{"en"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.dataset != "en" || opts.window != model.DefaultHistoryWindow || opts.limit != 0 || opts.label != "" {
			t.Errorf("unexpected options %+v", opts)
		}
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Parallel()
		if _, err := historyOptionsFrom(parsedSubcommand(t, "history", "--window", "0"), nil); err == nil {
			t.Error("expected error for --window 0")
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		t.Parallel()
		if _, err := historyOptionsFrom(parsedSubcommand(t, "history", "--limit", "-1"), nil); err == nil {
			t.Error("expected error for --limit -1")
		}
	})
}
