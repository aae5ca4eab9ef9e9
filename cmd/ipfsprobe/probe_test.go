package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/database"
	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/model"
)

const (
	testCIDv0 = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	testCIDv1 = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbeJobs(t *testing.T) {
	t.Parallel()

	t.Run("file arguments", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.InputFiles = []string{"data/en.wikipedia-on-ipfs.org_links_1_CID.csv", "tr_CID.csv"}
		cfg.SampleSize = 10
		cfg.Seed = 3

		jobs := probeJobs(cfg)
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].Dataset != "en" || jobs[1].Dataset != "tr" {
			t.Errorf("datasets = %q, %q", jobs[0].Dataset, jobs[1].Dataset)
		}
		for _, job := range jobs {
			if job.SampleSize != 10 || job.Seed != 3 || job.Label != config.DefaultLabel {
				t.Errorf("unexpected job %+v", job)
			}
		}
	})

	t.Run("profile datasets", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.SampleSize = 10
		cfg.Profile = &config.File{Datasets: []config.DatasetConfig{
			{File: "/data/en_CID.csv"},
			{Name: "turkish", File: "/data/tr_CID.csv", SampleSize: 4},
		}}

		jobs := probeJobs(cfg)
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].Dataset != "en" || jobs[0].SampleSize != 10 {
			t.Errorf("first job = %+v", jobs[0])
		}
		if jobs[1].Dataset != "turkish" || jobs[1].SampleSize != 4 {
			t.Errorf("second job = %+v", jobs[1])
		}
	})

	t.Run("nothing to probe", func(t *testing.T) {
		t.Parallel()
		if jobs := probeJobs(config.NewConfig()); len(jobs) != 0 {
			t.Errorf("expected no jobs, got %v", jobs)
		}
	})
}

func TestMonitorDatasets(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.SampleSize = 7
	cfg.InputFiles = []string{"my_CID.csv"}
	cfg.Profile = &config.File{Datasets: []config.DatasetConfig{
		{Name: "en", File: "/data/en_CID.csv", SamplePercentage: 0.05},
	}}

	datasets := monitorDatasets(cfg)
	if len(datasets) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(datasets))
	}
	if datasets[0].Name != "en" || datasets[0].SamplePercentage != 0.05 || datasets[0].SampleSize != 0 {
		t.Errorf("profile dataset = %+v", datasets[0])
	}
	if datasets[1].Name != "my" || datasets[1].SampleSize != 7 {
		t.Errorf("argument dataset = %+v", datasets[1])
	}
}

// TestRunProbeOffline measures a dataset whose website is served by
// httptest while the IPFS binary is missing, so every provider lookup
// fails and the run still completes.
func TestRunProbeOffline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wiki/Missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "<html><body>article</body></html>")
	}))
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	dir := t.TempDir()
	file := filepath.Join(dir, "en_CID.csv")
	var buf bytes.Buffer
	if err := dataset.Write(&buf, []model.SampleInput{
		{OriginalLink: host + "/wiki/Go", ResolvedCID: testCIDv1},
		{OriginalLink: host + "/wiki/Missing", ResolvedCID: testCIDv0},
	}); err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}
	if err := os.WriteFile(file, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}

	cfg := config.NewConfig()
	cfg.InputFiles = []string{file}
	cfg.Scheme = "http"
	cfg.MaxJitter = 0
	cfg.IPFSBinary = filepath.Join(dir, "no-such-ipfs")
	cfg.ManageDaemon = false
	cfg.OutputDir = filepath.Join(dir, "results")
	cfg.DBDir = filepath.Join(dir, "db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	var out bytes.Buffer
	if err := runProbe(context.Background(), cfg, probeJobs(cfg), &out, quietLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := out.String()
	for _, want := range []string{
		"Dataset en",
		"0 out of 2 articles had providers",
		"1 out of 2 articles were reachable on the website",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, summary)
		}
	}

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	runs, err := db.ListRuns(context.Background(), database.RunFilter{Dataset: "en"})
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Summary.Items != 2 || runs[0].Summary.WebsiteReachable != 1 {
		t.Errorf("unexpected stored runs: %+v", runs)
	}

	entries, err := os.ReadDir(filepath.Join(cfg.OutputDir, "en"))
	if err != nil || len(entries) == 0 {
		t.Errorf("expected result files below %s: %v", cfg.OutputDir, err)
	}
}
