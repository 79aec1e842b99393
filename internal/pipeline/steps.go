package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/subprobe/internal/collector"
	"github.com/nao1215/subprobe/internal/model"
	"github.com/nao1215/subprobe/internal/probe"
	"github.com/nao1215/subprobe/internal/render"
)

// Collector gathers the nodes of a cycle.
type Collector interface {
	Collect(ctx context.Context, urls []string) (*collector.Collection, error)
}

// Prober tests a node set.
type Prober interface {
	Probe(ctx context.Context, params probe.Params, nodes []model.Node) (*model.CheckResult, error)
}

// CollectStep fetches and parses the subscriptions of the cycle.
type CollectStep struct {
	collector Collector
}

// NewCollectStep creates a CollectStep.
func NewCollectStep(c Collector) *CollectStep {
	return &CollectStep{collector: c}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do implements Step.
func (s *CollectStep) Do(ctx context.Context, cycle *Cycle) error {
	col, err := s.collector.Collect(ctx, cycle.URLs)
	if err != nil {
		return fmt.Errorf("failed to collect nodes: %w", err)
	}
	cycle.Collection = col

	if len(col.Sources) > 0 && col.FailedSources() == len(col.Sources) {
		return fmt.Errorf("%w (%d sources)", ErrAllSourcesFailed, len(col.Sources))
	}
	return nil
}

// ProbeStep tests the collected nodes through the engine.
type ProbeStep struct {
	prober Prober
	params probe.Params
}

// NewProbeStep creates a ProbeStep that probes with params.
func NewProbeStep(p Prober, params probe.Params) *ProbeStep {
	return &ProbeStep{prober: p, params: params}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do implements Step.
func (s *ProbeStep) Do(ctx context.Context, cycle *Cycle) error {
	if cycle.Collection == nil {
		return fmt.Errorf("%w: probe before collect", ErrMissingState)
	}

	res, err := s.prober.Probe(ctx, s.params, cycle.Nodes())
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	cycle.Result = res
	return nil
}

// RenderStep converts the probe result into the export forms.
type RenderStep struct{}

// NewRenderStep creates a RenderStep.
func NewRenderStep() *RenderStep {
	return &RenderStep{}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do implements Step.
func (s *RenderStep) Do(_ context.Context, cycle *Cycle) error {
	if cycle.Result == nil {
		return fmt.Errorf("%w: render before probe", ErrMissingState)
	}

	links, document, err := render.Render(cycle.Result)
	if err != nil {
		return err
	}
	cycle.Links = links
	cycle.Document = document
	return nil
}

// WriteStep saves the exports of the cycle into a directory.
type WriteStep struct {
	dir    string
	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a WriteStep that writes into dir.
func NewWriteStep(dir string, opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{dir: dir}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do implements Step. Each file is replaced atomically so a reader never
// sees a partial export.
func (s *WriteStep) Do(_ context.Context, cycle *Cycle) error {
	if cycle.Links == nil || cycle.Document == nil {
		return fmt.Errorf("%w: write before render", ErrMissingState)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{render.LinksFileName, cycle.Links},
		{render.DocumentFileName, cycle.Document},
	}
	for _, f := range files {
		path := filepath.Join(s.dir, f.name)
		if err := writeFileAtomic(path, f.data); err != nil {
			return err
		}
		cycle.Written = append(cycle.Written, path)
		s.logger.Info("export written", "path", path, "bytes", len(f.data))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
