package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// TimestampLayout names result files after the start of their run.
const TimestampLayout = "2006-01-02_15-04-05"

// Layout locates the files of one measurement:
//
//	<root>/<dataset>/<size>_<label>/CID/<timestamp>.csv
//	<root>/<dataset>/<size>_<label>/CID/<timestamp>_cleaned.csv
//	<root>/<dataset>/<size>_<label>/Providers/<timestamp>.csv
type Layout struct {
	Root       string
	Dataset    string
	SampleSize int
	Label      string
	Timestamp  time.Time
}

// LayoutFor returns the layout of m below root.
func LayoutFor(root string, m *model.Measurement) Layout {
	return Layout{
		Root:       root,
		Dataset:    m.Dataset,
		SampleSize: m.SampleSize,
		Label:      m.Label,
		Timestamp:  m.StartedAt,
	}
}

// Dir returns the directory of the measurement series.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, l.Dataset, strconv.Itoa(l.SampleSize)+"_"+l.Label)
}

func (l Layout) stamp() string {
	return l.Timestamp.Format(TimestampLayout)
}

// ItemsPath returns the path of the per-item stream.
func (l Layout) ItemsPath() string {
	return filepath.Join(l.Dir(), "CID", l.stamp()+".csv")
}

// CleanedItemsPath returns the path of the cleaned per-item stream.
func (l Layout) CleanedItemsPath() string {
	return filepath.Join(l.Dir(), "CID", l.stamp()+"_cleaned.csv")
}

// PeersPath returns the path of the per-provider stream.
func (l Layout) PeersPath() string {
	return filepath.Join(l.Dir(), "Providers", l.stamp()+".csv")
}

// ReportPath returns the path of a whole-measurement report with ext.
func (l Layout) ReportPath(ext string) string {
	return filepath.Join(l.Dir(), l.stamp()+ext)
}

// Exporter writes the files of a measurement.
type Exporter struct {
	root     string
	cleaned  bool
	json     bool
	markdown bool
	xlsx     bool
	version  string
	logger   *slog.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithCleanedOutput toggles the cleaned per-item file. On by default.
func WithCleanedOutput(enabled bool) ExporterOption {
	return func(e *Exporter) {
		e.cleaned = enabled
	}
}

// WithJSONOutput toggles the JSON report.
func WithJSONOutput(enabled bool) ExporterOption {
	return func(e *Exporter) {
		e.json = enabled
	}
}

// WithMarkdownOutput toggles the Markdown report.
func WithMarkdownOutput(enabled bool) ExporterOption {
	return func(e *Exporter) {
		e.markdown = enabled
	}
}

// WithXLSXOutput toggles the XLSX workbook.
func WithXLSXOutput(enabled bool) ExporterOption {
	return func(e *Exporter) {
		e.xlsx = enabled
	}
}

// WithExportVersion records the ipfsprobe version in JSON reports.
func WithExportVersion(version string) ExporterOption {
	return func(e *Exporter) {
		e.version = version
	}
}

// WithExportLogger sets the logger.
func WithExportLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates an Exporter writing below root.
func NewExporter(root string, opts ...ExporterOption) *Exporter {
	e := &Exporter{root: root, cleaned: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

type exportFile struct {
	path   string
	writer func(io.Writer) Writer
}

// Export writes every enabled file of m and returns their paths.
func (e *Exporter) Export(ctx context.Context, m *model.Measurement) ([]string, error) {
	layout := LayoutFor(e.root, m)

	files := []exportFile{
		{layout.ItemsPath(), func(w io.Writer) Writer { return NewItemCSVWriter(w) }},
		{layout.PeersPath(), func(w io.Writer) Writer { return NewPeerCSVWriter(w) }},
	}
	if e.cleaned {
		files = append(files, exportFile{layout.CleanedItemsPath(), func(w io.Writer) Writer {
			return NewItemCSVWriter(w, WithCleaned(true))
		}})
	}
	if e.json {
		files = append(files, exportFile{layout.ReportPath(".json"), func(w io.Writer) Writer {
			return NewJSONWriter(w, WithPrettyPrint(), WithVersion(e.version))
		}})
	}
	if e.markdown {
		files = append(files, exportFile{layout.ReportPath(".md"), func(w io.Writer) Writer { return NewMarkdownWriter(w) }})
	}
	if e.xlsx {
		files = append(files, exportFile{layout.ReportPath(".xlsx"), func(w io.Writer) Writer { return NewXLSXWriter(w) }})
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		if err := writeFile(file.path, m, file.writer); err != nil {
			return paths, err
		}
		e.logger.Debug("wrote result file", "path", file.path)
		paths = append(paths, file.path)
	}
	return paths, nil
}

func writeFile(path string, m *model.Measurement, newWriter func(io.Writer) Writer) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := newWriter(f).Write(m); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
