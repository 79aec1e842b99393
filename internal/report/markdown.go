package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as a Markdown document with a
// mermaid chart of probe outcomes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeCounts(md, s)
	w.writeProtocols(md, s)
	w.writeFailedSources(md, s)
	w.writeLatencies(md, s)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by subprobe*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Subprobe Cycle Summary")
	md.PlainText("")

	started := "-"
	if !s.StartedAt.IsZero() {
		started = s.StartedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", started},
			{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")

	switch {
	case s.Failed():
		md.Cautionf("The cycle failed: %s", s.Error)
	case s.TeardownError != "":
		md.Warningf("The engine process could not be confirmed stopped: %s", s.TeardownError)
	case s.Nodes > 0 && s.Healthy() == 0:
		md.Warningf("None of the %d nodes is reachable.", s.Nodes)
	case s.Healthy() > 0:
		md.Tip(strconv.Itoa(s.Healthy()) + " healthy node(s) exported.")
	default:
		md.Note("No nodes were collected.")
	}
	md.PlainText("")
}

func statusText(s *Summary) string {
	switch {
	case s.Failed():
		return "❌ Failed"
	case s.TeardownError != "":
		return "⚠️ Engine not stopped"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, s *Summary) {
	md.H2("Counts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Sources", strconv.Itoa(s.Sources)},
			{"Failed sources", strconv.Itoa(len(s.FailedSources))},
			{"Parsed", strconv.Itoa(s.Parsed)},
			{"Unsupported", strconv.Itoa(s.Unsupported)},
			{"Malformed", strconv.Itoa(s.Malformed)},
			{"Duplicates", strconv.Itoa(s.Duplicates)},
			{"Probed", strconv.Itoa(s.Probed)},
			{"Healthy links", strconv.Itoa(s.HealthyLinks)},
			{"Healthy records", strconv.Itoa(s.HealthyRecords)},
		},
	})
	md.PlainText("")

	if s.Probed > 0 {
		w.writePieChart(md, s)
	}
}

// statusOrder fixes the slice order of the outcome chart.
var statusOrder = []string{"reachable", "timeout", "http_error", "connection_error", "unsupported"}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Probe Outcomes"),
		piechart.WithShowData(true),
	)
	for _, status := range statusOrder {
		if n := s.Statuses[status]; n > 0 {
			chart.LabelAndIntValue(status, uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeProtocols(md *markdown.Markdown, s *Summary) {
	if len(s.Protocols) == 0 {
		return
	}
	md.H2("Protocols")
	md.PlainText("")

	rows := make([][]string, len(s.Protocols))
	for i, pc := range s.Protocols {
		rows[i] = []string{displayProtocol(pc.Protocol), strconv.Itoa(pc.Total), strconv.Itoa(pc.Healthy)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Protocol", "Nodes", "Healthy"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailedSources(md *markdown.Markdown, s *Summary) {
	if len(s.FailedSources) == 0 {
		return
	}
	md.H2("Failed Sources")
	md.PlainText("")

	urls := make([]string, len(s.FailedSources))
	for i, u := range s.FailedSources {
		urls[i] = "`" + truncateString(u, 80) + "`"
	}
	md.BulletList(urls...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeLatencies(md *markdown.Markdown, s *Summary) {
	if len(s.Fastest) == 0 {
		return
	}
	md.H2("Latency")
	md.PlainText("")

	rows := make([][]string, 0, len(s.Fastest)+len(s.Slowest))
	for _, e := range s.Fastest {
		rows = append(rows, []string{"fastest", truncateString(e.Identifier, 40), strconv.FormatInt(e.Latency.Milliseconds(), 10) + " ms"})
	}
	for _, e := range s.Slowest {
		rows = append(rows, []string{"slowest", truncateString(e.Identifier, 40), strconv.FormatInt(e.Latency.Milliseconds(), 10) + " ms"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Outbound", "Delay"},
		Rows:   rows,
	})
	md.PlainText("")
}
