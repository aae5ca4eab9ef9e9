package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// createTestMeasurement returns the measurement of three articles: two with
// providers [A,B] and [B,C], one without, where C is unreachable.
func createTestMeasurement() *model.Measurement {
	m := model.NewMeasurement("en", "daily", 42, 3)
	m.StartedAt = time.Date(2024, 6, 1, 12, 30, 5, 0, time.UTC)
	m.FinishedAt = m.StartedAt.Add(90 * time.Second)
	m.TotalRows = 100
	m.Items = []model.ItemResult{
		{OriginalLink: "en.wikipedia-on-ipfs.org/wiki/Go", ResolvedCID: "cid1", WebsiteReachable: true, ProviderCount: 2, ProviderIDs: []string{"A", "B"}, HadProviders: true},
		{OriginalLink: "en.wikipedia-on-ipfs.org/wiki/C", ResolvedCID: "cid2", WebsiteReachable: true, ProviderCount: 2, ProviderIDs: []string{"B", "C"}, HadProviders: true},
		{OriginalLink: "en.wikipedia-on-ipfs.org/wiki/Zig", ResolvedCID: "cid3", WebsiteReachable: false, ProviderIDs: []string{}},
	}
	m.Peers = []model.PeerResult{
		{ProviderID: "B", Appearances: 2, Reachable: true, IPAddress: "203.0.113.7"},
		{ProviderID: "A", Appearances: 1, Reachable: true, IPAddress: "198.51.100.2"},
		{ProviderID: "C", Appearances: 1},
	}
	return m
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return records
}

func TestItemCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewItemCSVWriter(&buf).Write(createTestMeasurement())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		records := readCSV(t, buf.Bytes())
		if !slices.Equal(records[0], ItemHeader) {
			t.Errorf("header = %v", records[0])
		}
		want := []string{"en.wikipedia-on-ipfs.org/wiki/Go", "cid1", "True", "2", "A,B"}
		if !slices.Equal(records[1], want) {
			t.Errorf("row 1 = %v, want %v", records[1], want)
		}
		if records[3][2] != "False" || records[3][3] != "0" || records[3][4] != "" {
			t.Errorf("row 3 = %v", records[3])
		}
	})

	t.Run("cleaned drops unreachable providers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewItemCSVWriter(&buf, WithCleaned(true)).Write(createTestMeasurement()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		records := readCSV(t, buf.Bytes())
		if records[2][3] != "1" || records[2][4] != "B" {
			t.Errorf("cleaned row 2 = %v, want 1 provider B", records[2])
		}
	})
}

func TestPeerCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewPeerCSVWriter(&buf).Write(createTestMeasurement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records := readCSV(t, buf.Bytes())
	if !slices.Equal(records[0], PeerHeader) {
		t.Errorf("header = %v", records[0])
	}
	if !slices.Equal(records[1], []string{"B", "2", "True", "203.0.113.7"}) {
		t.Errorf("row 1 = %v", records[1])
	}
	if !slices.Equal(records[3], []string{"C", "1", "False", ""}) {
		t.Errorf("unreachable row = %v", records[3])
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{"True": true, "False": false, " true ": true, "1": true, "0": false} {
		got, err := ParseBool(in)
		if err != nil || got != want {
			t.Errorf("ParseBool(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Error("expected error for invalid value")
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("v1.2.3")).Write(createTestMeasurement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Version string        `json:"version"`
		Summary model.Summary `json:"summary"`
		Measure struct {
			Dataset string             `json:"dataset"`
			Peers   []model.PeerResult `json:"peers"`
		} `json:"measurement"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Version != "v1.2.3" || doc.Measure.Dataset != "en" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Summary.ItemsWithProviders != 2 || doc.Summary.ReachableProviders != 2 {
		t.Errorf("summary = %+v", doc.Summary)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
	if strings.Contains(buf.String(), `"ip_address":""`) {
		t.Error("unknown address should be omitted")
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary with chart and providers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithTopProviders(2)).Write(createTestMeasurement()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{
			"# IPFS Availability Report",
			"English",
			"## Availability",
			"```mermaid",
			"pie",
			"## Most Frequent Providers",
			"`B`",
			"1 article(s) did not load on the website.",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
		// Only the top two providers are listed: B first, then A.
		if strings.Contains(out, "`C`") {
			t.Error("provider C should not be listed")
		}
	})

	t.Run("empty measurement", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		m := model.NewMeasurement("en", "x", 1, 0)
		if _, err := NewMarkdownWriter(&buf).Write(m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No articles were sampled.") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestMeasurement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"2 out of 3 articles had providers in IPFS",
		"2 out of 3 articles were reachable on the website",
		"2 out of 3 providers were reachable",
		"unreachable: C (1 appearances)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestXLSXWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewXLSXWriter(&buf).Write(createTestMeasurement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !slices.Equal(got, []string{SheetSummary, SheetItems, SheetProviders}) {
		t.Errorf("sheets = %v", got)
	}
	rows, err := f.GetRows(SheetProviders)
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	if len(rows) != 4 || !slices.Equal(rows[0], PeerHeader) {
		t.Errorf("providers sheet = %v", rows)
	}
	items, err := f.GetRows(SheetItems)
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	if items[1][4] != "A,B" {
		t.Errorf("items row = %v", items[1])
	}
}

func TestHistoryWriters(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	runs := []model.RunSummary{
		{ID: 1, Dataset: "en", Label: "daily", StartedAt: base, Summary: model.Summary{Items: 10, AvailabilityRatio: 0.5, WebsiteRatio: 1, ReachableProviders: 4}},
		{ID: 2, Dataset: "en", Label: "daily", StartedAt: base.Add(time.Hour), Summary: model.Summary{Items: 10, AvailabilityRatio: 0.7, WebsiteRatio: 1, ReachableProviders: 6}},
	}
	points := model.BuildHistory(runs, 2)

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteHistory(points); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "60.0%") || !strings.Contains(out, "5.0") {
			t.Errorf("missing moving average:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteHistory(points); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []model.HistoryPoint
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 || !got[1].HasAverage {
			t.Errorf("history = %+v", got)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteHistory(points); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "# Measurement History") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}

func TestLayout(t *testing.T) {
	t.Parallel()

	l := LayoutFor("data", createTestMeasurement())
	if got, want := l.ItemsPath(), filepath.Join("data", "en", "3_daily", "CID", "2024-06-01_12-30-05.csv"); got != want {
		t.Errorf("ItemsPath() = %q, want %q", got, want)
	}
	if got, want := l.CleanedItemsPath(), filepath.Join("data", "en", "3_daily", "CID", "2024-06-01_12-30-05_cleaned.csv"); got != want {
		t.Errorf("CleanedItemsPath() = %q, want %q", got, want)
	}
	if got, want := l.PeersPath(), filepath.Join("data", "en", "3_daily", "Providers", "2024-06-01_12-30-05.csv"); got != want {
		t.Errorf("PeersPath() = %q, want %q", got, want)
	}
}

func TestExporter(t *testing.T) {
	t.Parallel()

	t.Run("writes the default files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		paths, err := NewExporter(root).Export(context.Background(), createTestMeasurement())
		if err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		if len(paths) != 3 {
			t.Fatalf("paths = %v, want 3 files", paths)
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				t.Errorf("missing %s: %v", p, err)
			}
		}
	})

	t.Run("writes every format when enabled", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		e := NewExporter(root,
			WithJSONOutput(true),
			WithMarkdownOutput(true),
			WithXLSXOutput(true),
			WithCleanedOutput(false),
		)
		paths, err := e.Export(context.Background(), createTestMeasurement())
		if err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		var exts []string
		for _, p := range paths {
			exts = append(exts, filepath.Ext(p))
		}
		if !slices.Equal(exts, []string{".csv", ".csv", ".json", ".md", ".xlsx"}) {
			t.Errorf("extensions = %v", exts)
		}
	})

	t.Run("canceled context stops before writing", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		paths, err := NewExporter(t.TempDir()).Export(ctx, createTestMeasurement())
		if err == nil || len(paths) != 0 {
			t.Errorf("Export() = %v, %v", paths, err)
		}
	})
}
