package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/subprobe/internal/collector"
	"github.com/nao1215/subprobe/internal/model"
	"github.com/nao1215/subprobe/internal/subscription"
)

func mustNode(t *testing.T, tag string, outbound model.Outbound) model.Node {
	t.Helper()
	n, err := model.NewNode(tag, outbound, model.LinkOrigin("ss://"+tag))
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	return n
}

// createTestSummary builds a summary of a cycle with three nodes, two of
// them reachable.
func createTestSummary(t *testing.T) *Summary {
	t.Helper()

	ss := model.ShadowsocksOutbound{Server: "a.example", ServerPort: 8388, Method: "aes-256-gcm", Password: "pw"}
	ss2 := ss
	ss2.Server = "b.example"
	vmess := model.VMessOutbound{Server: "v.example", ServerPort: 443, UUID: "u", Security: "auto"}

	nodes := []model.Node{mustNode(t, "A", ss), mustNode(t, "B", ss2), mustNode(t, "V", vmess)}
	col := &collector.Collection{
		Nodes: nodes,
		Sources: []collector.SourceReport{
			{URL: "https://ok.example/sub"},
			{URL: "https://down.example/sub", Err: errors.New("connection refused")},
		},
		Stats:      subscription.ParseStats{Parsed: 4, Unsupported: 2, Malformed: 1},
		Duplicates: 1,
	}
	outcomes := []model.ProbeOutcome{
		{Identifier: "A", Status: model.StatusReachable, Latency: 120 * time.Millisecond},
		{Identifier: "B", Status: model.StatusTimeout, Reason: "timeout"},
		{Identifier: "V", Status: model.StatusReachable, Latency: 80 * time.Millisecond},
	}

	s := NewSummary(col, model.NewCheckResult(nodes, outcomes))
	s.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Elapsed = 1500 * time.Millisecond
	return s
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	s := createTestSummary(t)

	if s.Sources != 2 || len(s.FailedSources) != 1 || s.FailedSources[0] != "https://down.example/sub" {
		t.Errorf("sources = %d, failed = %v", s.Sources, s.FailedSources)
	}
	if s.Parsed != 4 || s.Unsupported != 2 || s.Malformed != 1 || s.Duplicates != 1 {
		t.Errorf("parse counts = %d/%d/%d/%d", s.Parsed, s.Unsupported, s.Malformed, s.Duplicates)
	}
	if s.Probed != 3 || s.Healthy() != 2 {
		t.Errorf("Probed = %d, Healthy() = %d, want 3 and 2", s.Probed, s.Healthy())
	}
	if s.Statuses["reachable"] != 2 || s.Statuses["timeout"] != 1 {
		t.Errorf("Statuses = %v", s.Statuses)
	}

	if len(s.Protocols) != 2 {
		t.Fatalf("Protocols = %v, want 2 entries", s.Protocols)
	}
	if got := s.Protocols[0]; got.Protocol != "shadowsocks" || got.Total != 2 || got.Healthy != 1 {
		t.Errorf("Protocols[0] = %+v", got)
	}

	if len(s.Fastest) != 2 || s.Fastest[0].Identifier != "V" {
		t.Errorf("Fastest = %v, want V first", s.Fastest)
	}
	if len(s.Slowest) != 2 || s.Slowest[0].Identifier != "A" {
		t.Errorf("Slowest = %v, want A first", s.Slowest)
	}
}

func TestNewSummaryWithoutResult(t *testing.T) {
	t.Parallel()

	s := NewSummary(nil, nil)
	if s.Sources != 0 || s.Healthy() != 0 || s.FailedSources == nil || s.Fastest == nil {
		t.Errorf("NewSummary(nil, nil) = %+v, want zero counts and non-nil slices", s)
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes counts and protocols", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary(t)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		out := buf.String()
		for _, want := range []string{"SUBPROBE CYCLE SUMMARY", "Sources:      2 (1 failed)", "Healthy:      2 (2 links, 0 records)", "Shadowsocks", "VMess", "Status:   Complete"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "FASTEST") {
			t.Error("latency ranking shown without verbose")
		}
	})

	t.Run("verbose adds details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestSummary(t)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out := buf.String()
		for _, want := range []string{"FAILED SOURCES", "[x] https://down.example/sub", "FASTEST", "80ms  V"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("failed cycle", func(t *testing.T) {
		t.Parallel()

		s := NewSummary(nil, nil)
		s.Error = "engine startup failed"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(s); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "FAILED - engine startup failed") {
			t.Errorf("output = %s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []JSONWriterOption
		indented bool
	}{
		{name: "compact", opts: nil, indented: false},
		{name: "pretty", opts: []JSONWriterOption{WithPrettyPrint()}, indented: true},
		{name: "custom indent", opts: []JSONWriterOption{WithIndent("", "\t")}, indented: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if _, err := NewJSONWriter(&buf, tt.opts...).Write(createTestSummary(t)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			var got Summary
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if got.HealthyLinks != 2 || got.Statuses["timeout"] != 1 {
				t.Errorf("decoded summary = %+v", got)
			}
			if lines := strings.Count(buf.String(), "\n"); (lines > 1) != tt.indented {
				t.Errorf("output has %d lines, indented = %v", lines, tt.indented)
			}
		})
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("full summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestSummary(t)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# Subprobe Cycle Summary",
			"## Counts",
			"```mermaid",
			"Probe Outcomes",
			"## Protocols",
			"## Failed Sources",
			"## Latency",
			"[!TIP]",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("no healthy nodes warns", func(t *testing.T) {
		t.Parallel()

		s := NewSummary(&collector.Collection{Nodes: []model.Node{mustNode(t, "A", model.ShadowsocksOutbound{
			Server: "a", ServerPort: 1, Method: "aes-256-gcm", Password: "p",
		})}}, model.NewCheckResult(nil, nil))

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Errorf("output = %s", buf.String())
		}
	})

	t.Run("failed cycle", func(t *testing.T) {
		t.Parallel()

		s := NewSummary(nil, nil)
		s.Error = "engine control API unavailable"

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "[!CAUTION]") || strings.Contains(buf.String(), "```mermaid") {
			t.Errorf("output = %s", buf.String())
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := m.Write(createTestSummary(t))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("Write() = %d, want %d", n, text.Len()+js.Len())
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

func TestDisplayProtocol(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"vmess":       "VMess",
		"shadowsocks": "Shadowsocks",
		"hysteria2":   "Hysteria2",
		"":            "Unknown",
	}
	for in, want := range tests {
		if got := displayProtocol(in); got != want {
			t.Errorf("displayProtocol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short", input: "abc", maxLen: 10, want: "abc"},
		{name: "exact", input: "abcdef", maxLen: 6, want: "abcdef"},
		{name: "long", input: "abcdefghij", maxLen: 7, want: "abcd..."},
		{name: "tiny limit", input: "abcdef", maxLen: 2, want: "ab"},
		{name: "multibyte", input: "ノードノードノード", maxLen: 5, want: "ノー..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
