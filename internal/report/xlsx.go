package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// Sheet names of the XLSX workbook.
const (
	SheetSummary   = "Summary"
	SheetItems     = "Items"
	SheetProviders = "Providers"
)

// XLSXWriter outputs a measurement as an Excel workbook with a summary
// sheet and one sheet per result stream.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *XLSXWriter) Write(m *model.Measurement) (n int, err error) {
	f := excelize.NewFile()
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := w.writeSummary(f, m, header); err != nil {
		return 0, err
	}

	items := make([][]any, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, []any{
			item.OriginalLink, item.ResolvedCID, FormatBool(item.WebsiteReachable),
			item.ProviderCount, strings.Join(item.ProviderIDs, ","),
		})
	}
	if err := writeSheet(f, SheetItems, ItemHeader, items, header); err != nil {
		return 0, err
	}

	peers := make([][]any, 0, len(m.Peers))
	for _, peer := range m.Peers {
		peers = append(peers, []any{peer.ProviderID, peer.Appearances, FormatBool(peer.Reachable), peer.IPAddress})
	}
	if err := writeSheet(f, SheetProviders, PeerHeader, peers, header); err != nil {
		return 0, err
	}

	// NewFile always creates "Sheet1".
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(SheetSummary)
	if err != nil {
		return 0, err
	}
	f.SetActiveSheet(idx)

	written, err := f.WriteTo(w.output)
	return int(written), err
}

func (w *XLSXWriter) writeSummary(f *excelize.File, m *model.Measurement, header int) error {
	s := m.Summarize()
	rows := [][]any{
		{"Dataset", m.Dataset},
		{"Label", m.Label},
		{"Seed", m.Seed},
		{"Sample size", m.SampleSize},
		{"Total rows", m.TotalRows},
		{"Started", m.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", m.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Articles", s.Items},
		{"Articles with providers", s.ItemsWithProviders},
		{"Websites reachable", s.WebsiteReachable},
		{"Distinct providers", s.DistinctProviders},
		{"Reachable providers", s.ReachableProviders},
		{"Availability ratio", s.AvailabilityRatio},
		{"Website ratio", s.WebsiteRatio},
	}
	return writeSheet(f, SheetSummary, []string{"Property", "Value"}, rows, header)
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}

	for i, row := range rows {
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}
