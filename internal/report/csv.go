package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// Column headers of the two result streams.
var (
	ItemHeader = []string{"Original Link", "Resolved CID", "Website available", "Number of Providers", "List of Providers"}
	PeerHeader = []string{"Provider ID", "Number of Appearances", "Reachable", "IP Address"}
)

// FormatBool renders a boolean the way the result files spell it.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseBool accepts the spellings written by FormatBool and strconv.
func ParseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
}

// ItemRecord returns the CSV record of one item result.
func ItemRecord(item model.ItemResult) []string {
	return []string{
		item.OriginalLink,
		item.ResolvedCID,
		FormatBool(item.WebsiteReachable),
		strconv.Itoa(item.ProviderCount),
		strings.Join(item.ProviderIDs, ","),
	}
}

// PeerRecord returns the CSV record of one peer result. An unknown address
// is an empty field.
func PeerRecord(peer model.PeerResult) []string {
	return []string{
		peer.ProviderID,
		strconv.Itoa(peer.Appearances),
		FormatBool(peer.Reachable),
		peer.IPAddress,
	}
}

// ItemCSVWriter writes the per-item stream.
type ItemCSVWriter struct {
	baseWriter
	cleaned bool
}

// CSVOption configures an ItemCSVWriter.
type CSVOption func(*ItemCSVWriter)

// WithCleaned writes the items with unreachable providers removed.
func WithCleaned(cleaned bool) CSVOption {
	return func(w *ItemCSVWriter) {
		w.cleaned = cleaned
	}
}

// NewItemCSVWriter creates an ItemCSVWriter.
func NewItemCSVWriter(output io.Writer, opts ...CSVOption) *ItemCSVWriter {
	w := &ItemCSVWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *ItemCSVWriter) Write(m *model.Measurement) (int, error) {
	items := m.Items
	if w.cleaned {
		items = m.CleanedItems()
	}
	records := make([][]string, 0, len(items)+1)
	records = append(records, ItemHeader)
	for _, item := range items {
		records = append(records, ItemRecord(item))
	}
	return writeRecords(w.output, records)
}

// PeerCSVWriter writes the per-provider stream.
type PeerCSVWriter struct {
	baseWriter
}

// NewPeerCSVWriter creates a PeerCSVWriter.
func NewPeerCSVWriter(output io.Writer) *PeerCSVWriter {
	return &PeerCSVWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *PeerCSVWriter) Write(m *model.Measurement) (int, error) {
	records := make([][]string, 0, len(m.Peers)+1)
	records = append(records, PeerHeader)
	for _, peer := range m.Peers {
		records = append(records, PeerRecord(peer))
	}
	return writeRecords(w.output, records)
}

func writeRecords(output io.Writer, records [][]string) (int, error) {
	cw := &countingWriter{w: output}
	w := csv.NewWriter(cw)
	if err := w.WriteAll(records); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
