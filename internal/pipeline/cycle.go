package pipeline

import (
	"time"

	"github.com/nao1215/subprobe/internal/collector"
	"github.com/nao1215/subprobe/internal/model"
	"github.com/nao1215/subprobe/internal/report"
)

// Cycle is the state of one probe cycle. Each step reads what earlier
// steps left and adds its own part.
type Cycle struct {
	// URLs are the subscription sources of the cycle.
	URLs []string

	StartedAt  time.Time
	FinishedAt time.Time

	// Collection is set by CollectStep.
	Collection *collector.Collection

	// Result is set by ProbeStep.
	Result *model.CheckResult

	// Links and Document are set by RenderStep.
	Links    []byte
	Document []byte

	// Written lists the files saved by WriteStep.
	Written []string

	// PerformedSteps names the steps that completed, in order.
	PerformedSteps []string

	// Err is the error that stopped the cycle.
	Err error
}

// NewCycle creates the state for a cycle over urls.
func NewCycle(urls []string) *Cycle {
	return &Cycle{
		URLs:           urls,
		PerformedSteps: make([]string, 0),
	}
}

// Nodes returns the collected nodes, or nil before collection.
func (c *Cycle) Nodes() []model.Node {
	if c.Collection == nil {
		return nil
	}
	return c.Collection.Nodes
}

// Summary builds the report of the cycle.
func (c *Cycle) Summary() *report.Summary {
	s := report.NewSummary(c.Collection, c.Result)
	s.StartedAt = c.StartedAt
	if !c.FinishedAt.IsZero() {
		s.Elapsed = c.FinishedAt.Sub(c.StartedAt)
	}
	if c.Err != nil {
		s.Error = c.Err.Error()
	}
	return s
}
