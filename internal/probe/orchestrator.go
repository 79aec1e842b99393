package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/subprobe/internal/engine"
	"github.com/nao1215/subprobe/internal/model"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Params are the inputs of one probe cycle.
type Params struct {
	// EnginePath is the engine binary.
	EnginePath string

	// Control is the address the engine's control API listens on.
	Control engine.ControlListener

	// TestURL is fetched through every outbound.
	TestURL string

	// Timeout bounds each delay test.
	Timeout time.Duration

	// MaxConcurrency is the maximum number of delay requests in flight.
	MaxConcurrency int
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.EnginePath == "" {
		return fmt.Errorf("%w: empty engine path", ErrInvalidParams)
	}
	if p.TestURL == "" {
		return fmt.Errorf("%w: empty test URL", ErrInvalidParams)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParams)
	}
	if p.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max concurrency must be at least 1", ErrInvalidParams)
	}
	if err := p.Control.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// Engine is a started-per-cycle engine instance.
type Engine interface {
	// Start launches the engine with cfg and waits until it is ready.
	Start(ctx context.Context, cfg *engine.Config) error

	// Stop tears the engine down. It must be safe to call repeatedly.
	Stop() error

	// Delay tests one outbound.
	Delay(ctx context.Context, identifier, testURL string, timeout time.Duration) model.ProbeOutcome
}

// Launcher creates the Engine for one cycle.
type Launcher interface {
	Launch(enginePath string) Engine
}

// ProcessLauncher launches engine.Process instances.
type ProcessLauncher struct {
	Options []engine.ProcessOption
}

// Launch implements Launcher.
func (l ProcessLauncher) Launch(enginePath string) Engine {
	return engine.NewProcess(enginePath, l.Options...)
}

// Orchestrator runs probe cycles. Cycles must not overlap: each one owns
// its engine instance from start to teardown.
//
// A cycle writes one engine configuration holding every probeable node,
// starts the engine, fans delay requests out over at most
// Params.MaxConcurrency workers and stops the engine again. Outcomes are
// kept in node order so the reachable subset preserves collection order.
type Orchestrator struct {
	// launcher creates the engine of each cycle. Tests swap in a fake.
	launcher Launcher

	// logger receives per-cycle progress and per-node failures at debug level.
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithLauncher replaces the engine launcher.
func WithLauncher(l Launcher) Option {
	return func(o *Orchestrator) {
		o.launcher = l
	}
}

// New creates an Orchestrator that launches engine processes.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.launcher == nil {
		o.launcher = ProcessLauncher{Options: []engine.ProcessOption{engine.WithLogger(o.logger)}}
	}

	return o
}

// Probe tests every node through a fresh engine instance and returns the
// reachable ones.
//
// Node failures only exclude the node. Engine startup failure and total
// control API unavailability fail the cycle. The engine is stopped before
// Probe returns on every path; a failed teardown is reported in
// CheckResult.TeardownErr, or joined to the returned error.
func (o *Orchestrator) Probe(ctx context.Context, params Params, nodes []model.Node) (res *model.CheckResult, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg, err := engine.BuildConfig(nodes, params.Control)
	if err != nil {
		return nil, err
	}

	outcomes := make([]model.ProbeOutcome, len(nodes))
	for i, id := range cfg.Identifiers {
		if !cfg.Probeable[i] {
			outcomes[i] = model.ProbeOutcome{
				Identifier: id,
				Status:     model.StatusUnsupported,
				Reason:     fmt.Sprintf("%s record cannot be expressed as an engine outbound", nodes[i].Outbound.Protocol()),
			}
		}
	}

	if cfg.Outbounds() == 0 {
		o.logger.Info("no probeable nodes, skipping engine", "nodes", len(nodes))
		return model.NewCheckResult(nodes, outcomes), nil
	}

	eng := o.launcher.Launch(params.EnginePath)
	var teardownErr error
	defer func() {
		teardownErr = eng.Stop()
		if teardownErr == nil {
			return
		}
		o.logger.Error("engine teardown failed", "error", teardownErr)
		if res != nil {
			res.TeardownErr = teardownErr
			return
		}
		err = errors.Join(err, teardownErr)
	}()

	start := time.Now()
	if err := eng.Start(ctx, cfg); err != nil {
		return nil, err
	}

	o.logger.Info("probing nodes",
		"nodes", cfg.Outbounds(),
		"concurrency", params.MaxConcurrency,
		"timeout", params.Timeout,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(params.MaxConcurrency)
	for i, id := range cfg.Identifiers {
		if !cfg.Probeable[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = eng.Delay(gctx, id, params.TestURL, params.Timeout)
			o.logger.Debug("probe finished",
				"node", id,
				"status", outcomes[i].Status,
				"latency", outcomes[i].Latency,
				"reason", outcomes[i].Reason,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probed := lo.Filter(outcomes, func(out model.ProbeOutcome, _ int) bool {
		return out.Status != model.StatusUnsupported
	})
	if lo.EveryBy(probed, func(out model.ProbeOutcome) bool { return out.Status == model.StatusConnectionError }) {
		return nil, fmt.Errorf("%w: all %d delay requests failed: %s", ErrControlAPIUnavailable, len(probed), probed[0].Reason)
	}

	res = model.NewCheckResult(nodes, outcomes)
	o.logger.Info("probe cycle finished",
		"nodes", len(nodes),
		"healthy", res.Healthy(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}
