package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "subprobe"

	// DefaultEnginePath is looked up in PATH when not absolute.
	DefaultEnginePath = "sing-box"

	// DefaultControlHost is the listen host of the engine control API.
	DefaultControlHost = "127.0.0.1"

	// DefaultControlPort is the clash API port sing-box users expect.
	DefaultControlPort = 9090

	// DefaultTestURL returns 204 quickly from a global CDN.
	DefaultTestURL = "https://cp.cloudflare.com/generate_204"

	// DefaultProbeTimeout bounds each delay test.
	DefaultProbeTimeout = 6 * time.Second

	// DefaultMaxConcurrency is the number of delay tests in flight.
	DefaultMaxConcurrency = 10

	// DefaultSubscriptionsFile lists one subscription URL per line.
	DefaultSubscriptionsFile = "subscriptions.txt"

	// DefaultRefreshInterval is the pause between cycles in watch mode.
	DefaultRefreshInterval = 2 * time.Hour

	// DefaultStartupTimeout bounds the wait for the engine control API.
	DefaultStartupTimeout = 15 * time.Second

	// DefaultShutdownGrace is the time the engine gets to exit.
	DefaultShutdownGrace = 3 * time.Second

	// DefaultFetchTimeout bounds one subscription download.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxBodySize caps a subscription body.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultUserAgent is sent with subscription requests.
	DefaultUserAgent = "subprobe/1.0"

	// maxPort is the highest TCP port.
	maxPort = 65535
)

// Config holds all options of a subprobe run. It is populated from
// defaults, the config file, the environment and CLI flags, in that
// order, and passed down explicitly.
type Config struct {
	// EnginePath is the sing-box binary.
	EnginePath string

	// ControlHost and ControlPort are where the engine's clash API listens.
	ControlHost string
	ControlPort int

	// TestURL is fetched through every node.
	TestURL string

	// ProbeTimeout bounds each delay test.
	ProbeTimeout time.Duration

	// MaxConcurrency is the number of delay tests in flight.
	MaxConcurrency int

	// SubscriptionsFile lists subscription URLs, one per line.
	SubscriptionsFile string

	// Subscriptions are extra URLs from the config file or the command line.
	Subscriptions []string

	// Watch repeats cycles every RefreshInterval until interrupted.
	Watch           bool
	RefreshInterval time.Duration

	// StartupTimeout bounds the wait for the engine control API.
	StartupTimeout time.Duration

	// ShutdownGrace is the time the engine gets to exit before and after
	// it is killed.
	ShutdownGrace time.Duration

	// FetchTimeout bounds one subscription download.
	FetchTimeout time.Duration

	// FetchProxy routes subscription downloads through an http, https,
	// socks5 or socks5h proxy URL. Empty means direct.
	FetchProxy string

	// UserAgent is sent with subscription requests.
	UserAgent string

	// MaxBodySize caps a subscription body in bytes.
	MaxBodySize int64

	// OutputDir receives healthy.txt and healthy_clash.yaml.
	OutputDir string

	// CacheDir holds the subscription source cache.
	CacheDir string

	// UseCache enables conditional requests backed by the source cache.
	UseCache bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select the summary format. They are
	// mutually exclusive; plain text is the default.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile also writes the summary, as JSON, to this file.
	ReportFile string

	// ConfigFilePath is an explicit config file. When empty the file is
	// searched for with FindConfigFile.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		EnginePath:        DefaultEnginePath,
		ControlHost:       DefaultControlHost,
		ControlPort:       DefaultControlPort,
		TestURL:           DefaultTestURL,
		ProbeTimeout:      DefaultProbeTimeout,
		MaxConcurrency:    DefaultMaxConcurrency,
		SubscriptionsFile: DefaultSubscriptionsFile,
		RefreshInterval:   DefaultRefreshInterval,
		StartupTimeout:    DefaultStartupTimeout,
		ShutdownGrace:     DefaultShutdownGrace,
		FetchTimeout:      DefaultFetchTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		OutputDir:         XDGDataDir(),
		CacheDir:          XDGCacheDir(),
		UseCache:          true,
	}
}

// XDGDataDir returns the XDG data directory for subprobe.
// On Linux: ~/.local/share/subprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for subprobe.
// On Linux: ~/.config/subprobe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for subprobe.
// On Linux: ~/.cache/subprobe
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.EnginePath == "" {
		return ErrNoEnginePath
	}

	if c.ControlHost == "" || c.ControlPort < 1 || c.ControlPort > maxPort {
		return ErrInvalidControlPort
	}

	u, err := url.Parse(c.TestURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTestURL
	}

	if c.ProbeTimeout <= 0 || c.FetchTimeout <= 0 || c.ShutdownGrace <= 0 {
		return ErrInvalidTimeout
	}

	if c.StartupTimeout <= 0 {
		return ErrInvalidStartupTimeout
	}

	if c.MaxConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Watch && c.RefreshInterval <= 0 {
		return ErrInvalidInterval
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
