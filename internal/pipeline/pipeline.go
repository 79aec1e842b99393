package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Step is one stage of a probe cycle.
type Step interface {
	// Do executes the step. An error stops the cycle.
	Do(ctx context.Context, cycle *Cycle) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs the steps of a probe cycle in order.
//
// The command wires collect, probe, render and write. Steps share state
// only through the Cycle they are handed: each reads what earlier steps
// stored there and adds its own result, so a step can be tested alone by
// filling in a Cycle by hand.
type Pipeline struct {
	// steps run in insertion order.
	steps []Step

	// logger records step start, completion and failure.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline. Steps are added with AddStep.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order and stops at the first failure, so a
// broken engine never produces empty exports. The error is also stored
// in cycle.Err. Cancellation is checked between steps; steps handle it
// themselves while running.
func (p *Pipeline) Execute(ctx context.Context, cycle *Cycle) error {
	cycle.StartedAt = time.Now()
	defer func() {
		cycle.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("cycle cancelled", "step", step.Name(), "reason", err)
			cycle.Err = err
			return err
		}

		p.logger.Info("executing step", "step", step.Name())

		if err := step.Do(ctx, cycle); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "error", err)
			cycle.Err = err
			return err
		}

		p.logger.Debug("step completed", "step", step.Name())
		cycle.PerformedSteps = append(cycle.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
