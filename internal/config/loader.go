package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the config file name searched in the current
	// and home directories.
	DefaultConfigFile = ".subprobe"

	// xdgConfigFile is the config file name inside XDGConfigDir.
	xdgConfigFile = "config.yaml"
)

// LoadConfigFile reads a YAML config file. A missing file is reported as
// ErrConfigNotFound so callers can decide whether that matters.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when given
//  2. .subprobe in the current directory
//  3. .subprobe in the home directory
//  4. config.yaml in XDGConfigDir
//
// It returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Environment variables read by LoadEnv.
const (
	EnvEnginePath        = "SINGBOX_PATH"
	EnvControlHost       = "CLASH_API_HOST"
	EnvControlPort       = "CLASH_API_PORT"
	EnvTestURL           = "TEST_URL"
	EnvTestTimeoutMS     = "TEST_TIMEOUT_MS"
	EnvMaxConcurrency    = "MAX_CONCURRENCY"
	EnvSubscriptionsFile = "SUBSCRIPTIONS_FILE"
	EnvRefreshHours      = "REFRESH_HOURS"
	EnvFetchProxy        = "SUBPROBE_FETCH_PROXY"
	EnvOutputDir         = "SUBPROBE_OUTPUT_DIR"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnv applies the environment variables found through lookup onto c.
// Empty values are ignored.
func LoadEnv(c *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	getInt := func(key string) (int, bool, error) {
		v, ok := get(key)
		if !ok {
			return 0, false, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidEnv, key, v)
		}
		return n, true, nil
	}

	if v, ok := get(EnvEnginePath); ok {
		c.EnginePath = v
	}
	if v, ok := get(EnvControlHost); ok {
		c.ControlHost = v
	}
	if v, ok := get(EnvTestURL); ok {
		c.TestURL = v
	}
	if v, ok := get(EnvSubscriptionsFile); ok {
		c.SubscriptionsFile = v
	}
	if v, ok := get(EnvFetchProxy); ok {
		c.FetchProxy = v
	}
	if v, ok := get(EnvOutputDir); ok {
		c.OutputDir = v
	}

	ints := []struct {
		key   string
		apply func(int)
	}{
		{EnvControlPort, func(n int) { c.ControlPort = n }},
		{EnvTestTimeoutMS, func(n int) { c.ProbeTimeout = time.Duration(n) * time.Millisecond }},
		{EnvMaxConcurrency, func(n int) { c.MaxConcurrency = n }},
		{EnvRefreshHours, func(n int) { c.RefreshInterval = time.Duration(n) * time.Hour }},
	}
	for _, e := range ints {
		n, ok, err := getInt(e.key)
		if err != nil {
			return err
		}
		if ok {
			e.apply(n)
		}
	}

	return nil
}

// LoadSubscriptions reads subscription URLs from path, one per line,
// ignoring blank lines and lines starting with '#', and appends extra.
// Duplicates are dropped, keeping the first occurrence. A missing file
// is not an error when extra URLs are given. ErrNoSubscriptions is
// returned when the result is empty.
func LoadSubscriptions(path string, extra []string) ([]string, error) {
	urls := make([]string, 0)

	if path != "" {
		file, err := os.Open(path) //nolint:gosec // User-provided subscriptions path is intentional
		switch {
		case err == nil:
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				urls = append(urls, line)
			}
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
			}
		case os.IsNotExist(err) && len(extra) > 0:
		case os.IsNotExist(err):
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoSubscriptions, path)
		default:
			return nil, fmt.Errorf("failed to open subscriptions file: %w", err)
		}
	}

	for _, u := range extra {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	urls = lo.Uniq(urls)
	if len(urls) == 0 {
		return nil, ErrNoSubscriptions
	}
	return urls, nil
}
