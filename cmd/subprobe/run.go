package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/subprobe/internal/collector"
	"github.com/nao1215/subprobe/internal/config"
	"github.com/nao1215/subprobe/internal/database"
	"github.com/nao1215/subprobe/internal/engine"
	"github.com/nao1215/subprobe/internal/fetch"
	"github.com/nao1215/subprobe/internal/log"
	"github.com/nao1215/subprobe/internal/pipeline"
	"github.com/nao1215/subprobe/internal/probe"
	"github.com/nao1215/subprobe/internal/report"
	"github.com/spf13/cobra"
)

// cacheRetention is how long an unused subscription body stays cached.
const cacheRetention = 30 * 24 * time.Hour

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [subscription-url...]",
		Short: "Collect subscriptions, probe every node and export the healthy ones",
		Long: `Run performs a probe cycle:

1. Download every subscription (subscriptions file plus URL arguments)
2. Decode base64 share-link lists and clash-style proxy documents
3. Drop duplicate servers
4. Start sing-box with one outbound per node and run a delay test on each
5. Write healthy.txt and healthy_clash.yaml into the output directory

If every subscription fails or the engine cannot be started, the previous
exports are left untouched.

Examples:
  # One cycle over subscriptions.txt
  subprobe run

  # Extra URLs and a custom output directory
  subprobe run -o ./out https://example.com/sub?token=abc

  # Repeat every 30 minutes until interrupted
  subprobe run --watch --interval 30m

  # Markdown summary with an outcome chart
  subprobe run --markdown > summary.md`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// Engine flags
	cmd.Flags().String("engine", config.DefaultEnginePath, "sing-box binary (env SINGBOX_PATH)")
	cmd.Flags().String("control-host", config.DefaultControlHost, "Control API host (env CLASH_API_HOST)")
	cmd.Flags().Int("control-port", config.DefaultControlPort, "Control API port (env CLASH_API_PORT)")
	cmd.Flags().Duration("startup-timeout", config.DefaultStartupTimeout, "Deadline for the engine to become ready")

	// Probe flags
	cmd.Flags().StringP("test-url", "u", config.DefaultTestURL, "URL fetched through every node (env TEST_URL)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultProbeTimeout, "Per-node delay test timeout (env TEST_TIMEOUT_MS)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultMaxConcurrency, "Delay tests in flight (env MAX_CONCURRENCY)")

	// Source flags
	cmd.Flags().StringP("subscriptions", "s", config.DefaultSubscriptionsFile,
		"File with one subscription URL per line (env SUBSCRIPTIONS_FILE)")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout, "Timeout for one subscription download")
	cmd.Flags().String("fetch-proxy", "", "Download subscriptions through this proxy URL (env SUBPROBE_FETCH_PROXY)")
	cmd.Flags().Bool("no-cache", false, "Disable conditional requests against the source cache")

	// Output flags
	cmd.Flags().StringP("output", "o", config.XDGDataDir(),
		"Directory for healthy.txt and healthy_clash.yaml (env SUBPROBE_OUTPUT_DIR)")
	cmd.Flags().BoolP("json", "j", false, "Print the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Print the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "", "Also write the summary as JSON to this file")

	// Watch flags
	cmd.Flags().BoolP("watch", "w", false, "Repeat cycles until interrupted")
	cmd.Flags().Duration("interval", config.DefaultRefreshInterval, "Pause between cycles with --watch (env REFRESH_HOURS)")

	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer r.Close()

	return r.run(ctx)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file flag from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// buildConfig layers defaults, the config file, the environment and the
// flags the user set explicitly, in that order.
func buildConfig(cmd *cobra.Command, args []string, lookup config.LookupFunc) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = getConfigFlag(cmd)
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicitly given config file must exist; a missing default one
	// is fine.
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := config.LoadEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Subscriptions = append(cfg.Subscriptions, args...)
	return cfg, nil
}

// applyFlags copies the flags that were set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	strs := map[string]*string{
		"engine":        &cfg.EnginePath,
		"control-host":  &cfg.ControlHost,
		"test-url":      &cfg.TestURL,
		"subscriptions": &cfg.SubscriptionsFile,
		"fetch-proxy":   &cfg.FetchProxy,
		"output":        &cfg.OutputDir,
		"report":        &cfg.ReportFile,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	ints := map[string]*int{
		"control-port": &cfg.ControlPort,
		"concurrency":  &cfg.MaxConcurrency,
	}
	for name, dst := range ints {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		"startup-timeout": &cfg.StartupTimeout,
		"timeout":         &cfg.ProbeTimeout,
		"fetch-timeout":   &cfg.FetchTimeout,
		"interval":        &cfg.RefreshInterval,
	}
	for name, dst := range durations {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	var err error
	if cfg.Watch, err = flags.GetBool("watch"); err != nil {
		return err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return err
	}
	if noCache {
		cfg.UseCache = false
	}
	return nil
}

// runner owns the components shared by the cycles of one run.
type runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	pipeline *pipeline.Pipeline
	cache    *database.SourceCache
}

// newRunner wires the cycle pipeline. engineOpts are appended to the
// options every engine process is created with.
func newRunner(cfg *config.Config, logger *slog.Logger, out io.Writer, engineOpts ...engine.ProcessOption) (*runner, error) {
	r := &runner{cfg: cfg, logger: logger, out: out}

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithMaxBytes(cfg.MaxBodySize),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithProxy(cfg.FetchProxy),
		fetch.WithLogger(logger),
	}
	if cfg.UseCache {
		cache, err := database.Open(cfg.CacheDir, database.DefaultOptions())
		if err != nil {
			// The cache only saves bandwidth; run without it.
			logger.Warn("source cache unavailable", "dir", cfg.CacheDir, "error", err)
		} else {
			r.cache = cache
			fetchOpts = append(fetchOpts, fetch.WithCache(cache))
			if n, err := cache.Prune(context.Background(), time.Now().Add(-cacheRetention)); err != nil {
				logger.Warn("failed to prune source cache", "error", err)
			} else if n > 0 {
				logger.Info("pruned source cache", "entries", n)
			}
		}
	}

	fetcher, err := fetch.NewClient(fetchOpts...)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create subscription client: %w", err)
	}

	processOpts := append([]engine.ProcessOption{
		engine.WithStartupTimeout(cfg.StartupTimeout),
		engine.WithShutdownGrace(cfg.ShutdownGrace),
		engine.WithLogger(logger),
	}, engineOpts...)
	orchestrator := probe.New(
		probe.WithLogger(logger),
		probe.WithLauncher(probe.ProcessLauncher{Options: processOpts}),
	)

	params := probe.Params{
		EnginePath:     cfg.EnginePath,
		Control:        engine.ControlListener{Host: cfg.ControlHost, Port: cfg.ControlPort},
		TestURL:        cfg.TestURL,
		Timeout:        cfg.ProbeTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	r.pipeline = pipeline.New(pipeline.WithLogger(logger))
	r.pipeline.AddSteps(
		pipeline.NewCollectStep(collector.New(fetcher, collector.WithLogger(logger))),
		pipeline.NewProbeStep(orchestrator, params),
		pipeline.NewRenderStep(),
		pipeline.NewWriteStep(cfg.OutputDir, pipeline.WithWriteLogger(logger)),
	)

	return r, nil
}

// Close releases the source cache.
func (r *runner) Close() {
	if r.cache == nil {
		return
	}
	if err := r.cache.Close(); err != nil {
		r.logger.Warn("failed to close source cache", "error", err)
	}
}

// run executes one cycle, or cycles until ctx is done in watch mode.
// Cycles never overlap. In watch mode a failed cycle is logged and the
// next one is attempted after the interval.
func (r *runner) run(ctx context.Context) error {
	for {
		err := r.cycle(ctx)
		if !r.cfg.Watch {
			return err
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("cycle failed", "error", err)
		}

		r.logger.Info("waiting for next cycle", "interval", r.cfg.RefreshInterval)
		select {
		case <-ctx.Done():
			r.logger.Info("stopping watch")
			return nil
		case <-time.After(r.cfg.RefreshInterval):
		}
	}
}

// cycle runs the pipeline once and prints its summary. The subscription
// list is re-read every cycle so edits apply without a restart.
func (r *runner) cycle(ctx context.Context) error {
	urls, err := config.LoadSubscriptions(r.cfg.SubscriptionsFile, r.cfg.Subscriptions)
	if err != nil {
		return err
	}

	c := pipeline.NewCycle(urls)
	execErr := r.pipeline.Execute(ctx, c)

	if err := outputSummary(r.cfg, r.out, c.Summary()); err != nil {
		r.logger.Error("failed to write summary", "error", err)
	}
	if execErr != nil {
		return execErr
	}
	if c.Result != nil && c.Result.TeardownErr != nil {
		return fmt.Errorf("exports written but %w", c.Result.TeardownErr)
	}
	return nil
}

// outputSummary prints the summary in the selected format and, when a
// report file is configured, saves it there as JSON.
func outputSummary(cfg *config.Config, out io.Writer, s *report.Summary) error {
	var primary report.Writer
	switch {
	case cfg.JSONReport:
		primary = report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		primary = report.NewMarkdownWriter(out)
	default:
		primary = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
	writers := []report.Writer{primary}

	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		// The summary lists failed subscription URLs, which may carry tokens.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		writers = append(writers, report.NewJSONWriter(f, report.WithPrettyPrint()))
	}

	_, err := report.NewMultiWriter(writers...).Write(s)
	return err
}
