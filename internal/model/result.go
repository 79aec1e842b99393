package model

// CheckResult aggregates one probe cycle.
//
// The healthy nodes are kept as two export views: share links for nodes
// that came from links, and records for nodes that came from declarative
// documents. Both hold the verbatim origin.
type CheckResult struct {
	// HealthyLinks are the share links of reachable link-origin nodes.
	HealthyLinks []string

	// HealthyRecords are the records of reachable record-origin nodes.
	HealthyRecords []map[string]any

	// Outcomes holds one entry per probed node, in node order.
	Outcomes []ProbeOutcome

	// TeardownErr is set when the engine could not be confirmed stopped.
	TeardownErr error
}

// NewCheckResult correlates nodes with their outcomes by index and
// collects the reachable ones. Outcomes beyond len(nodes) are ignored and
// nodes without an outcome count as unreachable.
func NewCheckResult(nodes []Node, outcomes []ProbeOutcome) *CheckResult {
	res := &CheckResult{
		HealthyLinks:   make([]string, 0),
		HealthyRecords: make([]map[string]any, 0),
		Outcomes:       outcomes,
	}

	for i, node := range nodes {
		if i >= len(outcomes) || !outcomes[i].Reachable() {
			continue
		}
		switch {
		case node.Origin.IsLink():
			res.HealthyLinks = append(res.HealthyLinks, node.Origin.Link)
		case node.Origin.IsRecord():
			res.HealthyRecords = append(res.HealthyRecords, node.Origin.Record)
		}
	}

	return res
}

// Healthy returns the total number of reachable nodes.
func (r *CheckResult) Healthy() int {
	return len(r.HealthyLinks) + len(r.HealthyRecords)
}

// Clean reports whether the cycle finished without leaking the engine
// process.
func (r *CheckResult) Clean() bool {
	return r.TeardownErr == nil
}
