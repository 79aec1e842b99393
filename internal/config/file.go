package config

import "time"

// File is the YAML configuration file. Every field is optional; unset
// fields keep the value they had before the file was applied.
type File struct {
	Engine        *EngineFile `yaml:"engine,omitempty"`
	Probe         *ProbeFile  `yaml:"probe,omitempty"`
	Fetch         *FetchFile  `yaml:"fetch,omitempty"`
	Subscriptions []string    `yaml:"subscriptions,omitempty"`

	SubscriptionsFile *string   `yaml:"subscriptionsFile,omitempty"`
	OutputDir         *string   `yaml:"outputDir,omitempty"`
	CacheDir          *string   `yaml:"cacheDir,omitempty"`
	RefreshInterval   *Duration `yaml:"refreshInterval,omitempty"`
}

// EngineFile configures the sing-box process.
type EngineFile struct {
	Path           *string   `yaml:"path,omitempty"`
	ControlHost    *string   `yaml:"controlHost,omitempty"`
	ControlPort    *int      `yaml:"controlPort,omitempty"`
	StartupTimeout *Duration `yaml:"startupTimeout,omitempty"`
	ShutdownGrace  *Duration `yaml:"shutdownGrace,omitempty"`
}

// ProbeFile configures the delay tests.
type ProbeFile struct {
	TestURL        *string   `yaml:"testURL,omitempty"`
	Timeout        *Duration `yaml:"timeout,omitempty"`
	MaxConcurrency *int      `yaml:"maxConcurrency,omitempty"`
}

// FetchFile configures subscription downloads.
type FetchFile struct {
	Timeout     *Duration `yaml:"timeout,omitempty"`
	Proxy       *string   `yaml:"proxy,omitempty"`
	UserAgent   *string   `yaml:"userAgent,omitempty"`
	MaxBodySize *int64    `yaml:"maxBodySize,omitempty"`
	Cache       *bool     `yaml:"cache,omitempty"`
}

// Apply copies the fields set in the file onto c.
func (f *File) Apply(c *Config) {
	setIf(&c.SubscriptionsFile, f.SubscriptionsFile)
	setIf(&c.OutputDir, f.OutputDir)
	setIf(&c.CacheDir, f.CacheDir)
	setDuration(&c.RefreshInterval, f.RefreshInterval)
	c.Subscriptions = append(c.Subscriptions, f.Subscriptions...)

	if e := f.Engine; e != nil {
		setIf(&c.EnginePath, e.Path)
		setIf(&c.ControlHost, e.ControlHost)
		setIf(&c.ControlPort, e.ControlPort)
		setDuration(&c.StartupTimeout, e.StartupTimeout)
		setDuration(&c.ShutdownGrace, e.ShutdownGrace)
	}

	if p := f.Probe; p != nil {
		setIf(&c.TestURL, p.TestURL)
		setDuration(&c.ProbeTimeout, p.Timeout)
		setIf(&c.MaxConcurrency, p.MaxConcurrency)
	}

	if fe := f.Fetch; fe != nil {
		setDuration(&c.FetchTimeout, fe.Timeout)
		setIf(&c.FetchProxy, fe.Proxy)
		setIf(&c.UserAgent, fe.UserAgent)
		setIf(&c.MaxBodySize, fe.MaxBodySize)
		setIf(&c.UseCache, fe.Cache)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}
