package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/subprobe/internal/collector"
	"github.com/nao1215/subprobe/internal/model"
	"github.com/samber/lo"
)

// latencyRankSize is the number of entries in the fastest and slowest
// lists.
const latencyRankSize = 5

// Summary is the outcome of one probe cycle in reportable form.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	// Sources is the number of subscription URLs of the cycle.
	Sources       int      `json:"sources"`
	FailedSources []string `json:"failed_sources"`

	Parsed      int `json:"parsed"`
	Unsupported int `json:"unsupported"`
	Malformed   int `json:"malformed"`
	Duplicates  int `json:"duplicates"`

	// Nodes is the number of distinct nodes sent to the probe.
	Nodes int `json:"nodes"`

	// Probed counts nodes tested through the engine.
	Probed int `json:"probed"`

	HealthyLinks   int `json:"healthy_links"`
	HealthyRecords int `json:"healthy_records"`

	// Statuses counts probe outcomes by status name.
	Statuses map[string]int `json:"statuses"`

	Protocols []ProtocolCount `json:"protocols"`
	Fastest   []LatencyEntry  `json:"fastest"`
	Slowest   []LatencyEntry  `json:"slowest"`

	// TeardownError is set when the engine could not be stopped.
	TeardownError string `json:"teardown_error,omitempty"`

	// Error is set when the cycle failed.
	Error string `json:"error,omitempty"`
}

// ProtocolCount is the per-protocol breakdown of a cycle.
type ProtocolCount struct {
	Protocol string `json:"protocol"`
	Total    int    `json:"total"`
	Healthy  int    `json:"healthy"`
}

// LatencyEntry is one reachable outbound and its measured delay.
type LatencyEntry struct {
	Identifier string        `json:"identifier"`
	Latency    time.Duration `json:"latency_ns"`
}

// NewSummary builds a Summary from the collection and the probe result of
// a cycle. Either may be nil when the cycle stopped early.
func NewSummary(col *collector.Collection, res *model.CheckResult) *Summary {
	s := &Summary{
		FailedSources: make([]string, 0),
		Statuses:      make(map[string]int),
		Protocols:     make([]ProtocolCount, 0),
		Fastest:       make([]LatencyEntry, 0),
		Slowest:       make([]LatencyEntry, 0),
	}

	if col != nil {
		s.Sources = len(col.Sources)
		for _, src := range col.Sources {
			if src.Err != nil {
				s.FailedSources = append(s.FailedSources, src.URL)
			}
		}
		s.Parsed = col.Stats.Parsed
		s.Unsupported = col.Stats.Unsupported
		s.Malformed = col.Stats.Malformed
		s.Duplicates = col.Duplicates
		s.Nodes = len(col.Nodes)
	}

	if res == nil {
		return s
	}

	s.HealthyLinks = len(res.HealthyLinks)
	s.HealthyRecords = len(res.HealthyRecords)
	if res.TeardownErr != nil {
		s.TeardownError = res.TeardownErr.Error()
	}

	for _, out := range res.Outcomes {
		s.Statuses[out.Status.String()]++
		if out.Status != model.StatusUnsupported {
			s.Probed++
		}
	}

	if col != nil {
		s.Protocols = protocolBreakdown(col.Nodes, res.Outcomes)
	}

	reachable := lo.FilterMap(res.Outcomes, func(out model.ProbeOutcome, _ int) (LatencyEntry, bool) {
		return LatencyEntry{Identifier: out.Identifier, Latency: out.Latency}, out.Reachable()
	})
	slices.SortStableFunc(reachable, func(a, b LatencyEntry) int {
		return cmp.Compare(a.Latency, b.Latency)
	})
	s.Fastest = append(s.Fastest, reachable[:min(latencyRankSize, len(reachable))]...)
	for i := len(reachable) - 1; i >= 0 && len(s.Slowest) < latencyRankSize; i-- {
		s.Slowest = append(s.Slowest, reachable[i])
	}

	return s
}

func protocolBreakdown(nodes []model.Node, outcomes []model.ProbeOutcome) []ProtocolCount {
	counts := make(map[string]*ProtocolCount)
	for i, node := range nodes {
		name := string(node.Outbound.Protocol())
		pc, ok := counts[name]
		if !ok {
			pc = &ProtocolCount{Protocol: name}
			counts[name] = pc
		}
		pc.Total++
		if i < len(outcomes) && outcomes[i].Reachable() {
			pc.Healthy++
		}
	}

	out := make([]ProtocolCount, 0, len(counts))
	for _, pc := range counts {
		out = append(out, *pc)
	}
	slices.SortFunc(out, func(a, b ProtocolCount) int {
		return cmp.Compare(a.Protocol, b.Protocol)
	})
	return out
}

// Healthy returns the total number of healthy nodes.
func (s *Summary) Healthy() int {
	return s.HealthyLinks + s.HealthyRecords
}

// Failed reports whether the cycle ended with an error.
func (s *Summary) Failed() bool {
	return s.Error != ""
}
