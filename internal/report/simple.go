package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const ruleWidth = 60

// SimpleWriter outputs a plain-text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the failed source URLs and the latency rankings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the detailed sections.
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

// Write outputs the summary in human-readable form.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeCounts(&sb, s)
	w.writeProtocols(&sb, s)
	if w.verbose {
		w.writeFailedSources(&sb, s)
		w.writeLatencies(&sb, "FASTEST", s.Fastest)
		w.writeLatencies(&sb, "SLOWEST", s.Slowest)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("SUBPROBE CYCLE SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	if !s.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Elapsed:  %s\n", s.Elapsed.Round(time.Millisecond))

	switch {
	case s.Failed():
		fmt.Fprintf(sb, "Status:   FAILED - %s\n", s.Error)
	case s.TeardownError != "":
		fmt.Fprintf(sb, "Status:   COMPLETE, engine not stopped - %s\n", s.TeardownError)
	default:
		sb.WriteString("Status:   Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *Summary) {
	section(sb, "COUNTS")
	fmt.Fprintf(sb, "  Sources:      %d (%d failed)\n", s.Sources, len(s.FailedSources))
	fmt.Fprintf(sb, "  Parsed:       %d\n", s.Parsed)
	fmt.Fprintf(sb, "  Unsupported:  %d\n", s.Unsupported)
	fmt.Fprintf(sb, "  Malformed:    %d\n", s.Malformed)
	fmt.Fprintf(sb, "  Duplicates:   %d\n", s.Duplicates)
	fmt.Fprintf(sb, "  Probed:       %d of %d\n", s.Probed, s.Nodes)
	fmt.Fprintf(sb, "  Healthy:      %d (%d links, %d records)\n", s.Healthy(), s.HealthyLinks, s.HealthyRecords)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProtocols(sb *strings.Builder, s *Summary) {
	if len(s.Protocols) == 0 {
		return
	}
	section(sb, "PROTOCOLS")
	for _, pc := range s.Protocols {
		fmt.Fprintf(sb, "  %-12s %d/%d healthy\n", displayProtocol(pc.Protocol), pc.Healthy, pc.Total)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailedSources(sb *strings.Builder, s *Summary) {
	if len(s.FailedSources) == 0 {
		return
	}
	section(sb, "FAILED SOURCES")
	for _, url := range s.FailedSources {
		fmt.Fprintf(sb, "  [x] %s\n", url)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLatencies(sb *strings.Builder, title string, entries []LatencyEntry) {
	if len(entries) == 0 {
		return
	}
	section(sb, title)
	for _, e := range entries {
		fmt.Fprintf(sb, "  %6dms  %s\n", e.Latency.Milliseconds(), e.Identifier)
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
}
