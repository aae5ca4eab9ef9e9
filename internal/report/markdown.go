package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/model"
)

// MarkdownWriter outputs a measurement summary in Markdown format.
type MarkdownWriter struct {
	baseWriter
	topProviders int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithTopProviders sets how many of the most frequent providers are listed.
func WithTopProviders(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.topProviders = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output), topProviders: 10}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *MarkdownWriter) Write(m *model.Measurement) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := m.Summarize()

	w.writeHeader(md, m)
	w.writeSummary(md, s)
	w.writeTopProviders(md, m)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, m *model.Measurement) {
	rows := [][]string{{"Dataset", m.Dataset}}
	if lang := dataset.Language(m.Dataset); lang != "" {
		rows = append(rows, []string{"Language", lang})
	}
	rows = append(rows,
		[]string{"Label", m.Label},
		[]string{"Seed", strconv.FormatInt(m.Seed, 10)},
		[]string{"Sample", strconv.Itoa(len(m.Items)) + " of " + strconv.Itoa(m.TotalRows)},
		[]string{"Started", m.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", m.Duration().Round(1e9).String()},
	)

	md.H1("IPFS Availability Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Availability")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Measure", "Count", "Share"},
		Rows: [][]string{
			{"Articles with providers", strconv.Itoa(s.ItemsWithProviders) + "/" + strconv.Itoa(s.Items), percent(s.AvailabilityRatio)},
			{"Websites reachable", strconv.Itoa(s.WebsiteReachable) + "/" + strconv.Itoa(s.Items), percent(s.WebsiteRatio)},
			{"Providers reachable", strconv.Itoa(s.ReachableProviders) + "/" + strconv.Itoa(s.DistinctProviders), percent(model.Ratio(s.ReachableProviders, s.DistinctProviders))},
		},
	})
	md.PlainText("")

	if s.Items > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Articles available in IPFS"),
			piechart.WithShowData(true),
		)
		chart.LabelAndIntValue("With providers", uint64(s.ItemsWithProviders))
		chart.LabelAndIntValue("Without providers", uint64(s.Items-s.ItemsWithProviders))
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.Items == 0:
		md.Note("No articles were sampled.")
	case s.ItemsWithProviders == 0:
		md.Cautionf("None of the %d sampled articles had providers in IPFS.", s.Items)
	case s.ReachableProviders == 0 && s.DistinctProviders > 0:
		md.Warningf("None of the %d providers offered a usable IPv4/TCP address.", s.DistinctProviders)
	case s.WebsiteReachable < s.Items:
		md.Importantf("%d article(s) did not load on the website.", s.Items-s.WebsiteReachable)
	default:
		md.Tip("Every sampled article had providers and loaded on the website.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeTopProviders(md *markdown.Markdown, m *model.Measurement) {
	if w.topProviders == 0 || len(m.Peers) == 0 {
		return
	}
	md.H2("Most Frequent Providers")
	md.PlainText("")

	peers := topPeers(m.Peers, w.topProviders)
	rows := make([][]string, len(peers))
	for i, p := range peers {
		ip := p.IPAddress
		if ip == "" {
			ip = "-"
		}
		rows[i] = []string{"`" + p.ProviderID + "`", strconv.Itoa(p.Appearances), FormatBool(p.Reachable), ip}
	}
	md.Table(markdown.TableSet{Header: PeerHeader, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [ipfsprobe](https://github.com/nao1215/ipfsprobe)*")
}

// WriteHistory writes history points as a Markdown table.
func (w *MarkdownWriter) WriteHistory(points []model.HistoryPoint) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Measurement History")
	md.PlainText("")

	if len(points) == 0 {
		md.Note("No stored measurements match.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(points))
	for i, p := range points {
		avg := []string{"-", "-", "-"}
		if p.HasAverage {
			avg = []string{percent(p.AvailabilityAvg), percent(p.WebsiteAvg), strconv.FormatFloat(p.ReachableAvg, 'f', 1, 64)}
		}
		rows[i] = []string{
			strconv.FormatInt(p.ID, 10),
			p.StartedAt.Format("2006-01-02 15:04"),
			p.Dataset,
			p.Label,
			percent(p.Summary.AvailabilityRatio),
			percent(p.Summary.WebsiteRatio),
			strconv.Itoa(p.Summary.ReachableProviders),
			avg[0], avg[1], avg[2],
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Dataset", "Label", "IPFS", "Website", "Reachable Peers", "IPFS Avg", "Website Avg", "Peers Avg"},
		Rows:   rows,
	})
	md.PlainText("")
	return len(md.String()), md.Build()
}
