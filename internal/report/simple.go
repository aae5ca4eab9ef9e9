package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// SimpleWriter outputs a short human-readable summary for the terminal.
type SimpleWriter struct {
	baseWriter
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists unreachable providers after the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(m *model.Measurement) (int, error) {
	s := m.Summarize()
	var sb strings.Builder

	fmt.Fprintf(&sb, "Dataset %s, label %q, seed %d, %d of %d rows sampled (%s)\n",
		m.Dataset, m.Label, m.Seed, s.Items, m.TotalRows, m.Duration().Round(1e9))
	fmt.Fprintf(&sb, "%d out of %d articles had providers in IPFS (%.1f%%)\n",
		s.ItemsWithProviders, s.Items, s.AvailabilityRatio*100)
	fmt.Fprintf(&sb, "%d out of %d articles were reachable on the website (%.1f%%)\n",
		s.WebsiteReachable, s.Items, s.WebsiteRatio*100)
	fmt.Fprintf(&sb, "%d out of %d providers were reachable\n",
		s.ReachableProviders, s.DistinctProviders)

	if w.verbose {
		for _, peer := range m.Peers {
			if !peer.Reachable {
				fmt.Fprintf(&sb, "  unreachable: %s (%d appearances)\n", peer.ProviderID, peer.Appearances)
			}
		}
	}

	return io.WriteString(w.output, sb.String())
}

// WriteHistory writes history points as an aligned table.
func (w *SimpleWriter) WriteHistory(points []model.HistoryPoint) (int, error) {
	cw := &countingWriter{w: w.output}
	tw := tabwriter.NewWriter(cw, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tSTARTED\tDATASET\tLABEL\tITEMS\tIPFS\tWEBSITE\tREACHABLE PEERS\tIPFS AVG\tWEBSITE AVG\tPEERS AVG")
	for _, p := range points {
		avg := []string{"-", "-", "-"}
		if p.HasAverage {
			avg = []string{percent(p.AvailabilityAvg), percent(p.WebsiteAvg), fmt.Sprintf("%.1f", p.ReachableAvg)}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			p.ID,
			p.StartedAt.Format("2006-01-02 15:04"),
			p.Dataset,
			p.Label,
			p.Summary.Items,
			percent(p.Summary.AvailabilityRatio),
			percent(p.Summary.WebsiteRatio),
			p.Summary.ReachableProviders,
			avg[0], avg[1], avg[2],
		)
	}
	err := tw.Flush()
	return cw.n, err
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
