package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/subprobe/internal/model"
)

const (
	// DefaultStartupTimeout bounds the wait for the control API.
	DefaultStartupTimeout = 15 * time.Second

	// DefaultShutdownGrace is the time the engine gets to exit after a
	// termination request, and again after a kill.
	DefaultShutdownGrace = 3 * time.Second

	// DefaultPollInterval is the delay between readiness requests.
	DefaultPollInterval = 200 * time.Millisecond

	// stderrTail is the amount of engine stderr kept for error messages.
	stderrTail = 2048
)

// Process is one engine subprocess together with its temporary
// configuration directory. A Process is started once per probe cycle and
// must always be stopped, whatever the outcome of the cycle.
//
// Start writes config.json into a fresh temporary directory, launches
// "<path> run -c config.json" and polls GET /version until the control API
// answers. Stop signals the engine, kills it after the grace period and
// removes the directory.
type Process struct {
	path   string
	args   []string
	env    []string
	logger *slog.Logger

	// timeout bounds the wait for the control API after launch.
	timeout time.Duration
	// grace is how long Stop waits after the interrupt before killing.
	grace time.Duration
	// poll is the interval between readiness requests.
	poll time.Duration

	// mu guards the fields below; they are set by Start and cleared by Stop.
	mu     sync.Mutex
	cmd    *exec.Cmd
	dir    string
	client *Client
	// exited is closed once cmd.Wait returns; waitErr holds its result.
	exited  chan struct{}
	waitErr error
	// stderr keeps the last stderrTail bytes for startup error messages.
	stderr *tailBuffer
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithStartupTimeout sets the deadline for the control API to become ready.
func WithStartupTimeout(d time.Duration) ProcessOption {
	return func(p *Process) {
		p.timeout = d
	}
}

// WithShutdownGrace sets how long Stop waits for the process to exit.
func WithShutdownGrace(d time.Duration) ProcessOption {
	return func(p *Process) {
		p.grace = d
	}
}

// WithPollInterval sets the delay between readiness requests.
func WithPollInterval(d time.Duration) ProcessOption {
	return func(p *Process) {
		p.poll = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ProcessOption {
	return func(p *Process) {
		p.logger = logger
	}
}

// WithLeadingArgs inserts arguments before "run -c <config>".
func WithLeadingArgs(args ...string) ProcessOption {
	return func(p *Process) {
		p.args = append(p.args, args...)
	}
}

// WithEnv adds KEY=VALUE pairs to the process environment.
func WithEnv(env ...string) ProcessOption {
	return func(p *Process) {
		p.env = append(p.env, env...)
	}
}

// NewProcess creates an engine manager for the binary at path.
// Call Start to launch it.
func NewProcess(path string, opts ...ProcessOption) *Process {
	p := &Process{
		path:    path,
		timeout: DefaultStartupTimeout,
		grace:   DefaultShutdownGrace,
		poll:    DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Start writes cfg to a temporary directory, launches the engine and
// waits for its control API. When Start fails the process has already
// been torn down; the returned error wraps ErrStartup or the context
// error.
func (p *Process) Start(ctx context.Context, cfg *Config) error {
	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}

	if err := p.launch(cfg); err != nil {
		p.mu.Unlock()
		return errors.Join(err, p.Stop())
	}
	client := p.client
	exited := p.exited
	p.mu.Unlock()

	p.logger.Debug("engine launched",
		"path", p.path,
		"controller", cfg.Listener.Addr(),
		"outbounds", cfg.Outbounds(),
	)

	if err := WaitReady(ctx, client, p.poll, p.timeout, exited); err != nil {
		if errors.Is(err, ErrEngineExited) {
			err = fmt.Errorf("%w: %w (%s)", err, p.exitError(), p.stderr.String())
		}
		return errors.Join(err, p.Stop())
	}

	p.logger.Info("engine ready", "controller", cfg.Listener.Addr())
	return nil
}

// launch must be called with p.mu held.
func (p *Process) launch(cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	dir, err := os.MkdirTemp("", "subprobe-engine-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create config directory: %w", ErrStartup, err)
	}
	p.dir = dir

	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write config: %w", ErrStartup, err)
	}

	args := append(append([]string{}, p.args...), "run", "-c", configPath)
	cmd := exec.Command(p.path, args...) //nolint:gosec // engine path is operator configuration
	cmd.Dir = dir
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}
	p.stderr = &tailBuffer{limit: stderrTail}
	cmd.Stdout = p.stderr
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(exited)
	}()

	p.cmd = cmd
	p.exited = exited
	p.client = NewClient(cfg.Listener.URL())
	return nil
}

func (p *Process) exitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waitErr == nil {
		return errors.New("exit status 0")
	}
	return p.waitErr
}

// Stop terminates the engine: a termination request first, a kill after
// the grace period, and ErrTeardown if the process is still alive after a
// second grace period. The configuration directory is removed afterwards.
// Stop is safe to call more than once and on a Process that never started.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd, exited, dir := p.cmd, p.exited, p.dir
	p.cmd, p.exited, p.dir, p.client = nil, nil, "", nil
	p.mu.Unlock()

	var err error
	if cmd != nil && cmd.Process != nil {
		err = p.terminate(cmd, exited)
	}

	if dir != "" {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			p.logger.Warn("failed to remove engine config directory", "dir", dir, "error", rmErr)
		}
	}

	return err
}

func (p *Process) terminate(cmd *exec.Cmd, exited <-chan struct{}) error {
	select {
	case <-exited:
		return nil
	default:
	}

	if err := cmd.Process.Signal(stopSignal); err != nil {
		p.logger.Debug("termination signal failed", "error", err)
	}

	select {
	case <-exited:
		p.logger.Debug("engine stopped")
		return nil
	case <-time.After(p.grace):
	}

	p.logger.Warn("engine did not exit in time, killing it", "grace", p.grace)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug("kill failed", "error", err)
	}

	select {
	case <-exited:
		return nil
	case <-time.After(p.grace):
		return fmt.Errorf("%w: pid %d still running", ErrTeardown, cmd.Process.Pid)
	}
}

// IsRunning reports whether the engine process has been started and has
// not exited.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Client returns the control API client of the running engine, or nil.
func (p *Process) Client() *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// Delay runs one delay test through the running engine.
func (p *Process) Delay(ctx context.Context, identifier, testURL string, timeout time.Duration) model.ProbeOutcome {
	client := p.Client()
	if client == nil {
		return model.ProbeOutcome{
			Identifier: identifier,
			Status:     model.StatusConnectionError,
			Reason:     ErrNotRunning.Error(),
		}
	}
	return client.Delay(ctx, identifier, testURL, timeout)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, data...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(data), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
