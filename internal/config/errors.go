package config

import "errors"

// Configuration validation errors returned by Config.Validate and the
// loaders. Callers match them with errors.Is.
var (
	// ErrNoEnginePath is returned when no engine binary is configured.
	ErrNoEnginePath = errors.New("no engine path: set --engine or SINGBOX_PATH")

	// ErrInvalidControlPort is returned when the control API address is
	// unusable.
	ErrInvalidControlPort = errors.New("invalid control API address: host must be set and port must be 1-65535")

	// ErrInvalidTestURL is returned when the test URL is not an absolute
	// http or https URL.
	ErrInvalidTestURL = errors.New("invalid test URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when a probe, fetch or shutdown timeout
	// is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidStartupTimeout is returned when the engine startup timeout
	// is not positive.
	ErrInvalidStartupTimeout = errors.New("invalid engine startup timeout: must be positive")

	// ErrInvalidConcurrency is returned when max concurrency is below one.
	ErrInvalidConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrInvalidInterval is returned when watch mode has no positive
	// refresh interval.
	ErrInvalidInterval = errors.New("invalid refresh interval: must be positive")

	// ErrInvalidMaxBodySize is returned when the body cap is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoSubscriptions is returned when no subscription URL is configured.
	ErrNoSubscriptions = errors.New("no subscription URLs: add them to the subscriptions file or pass them as arguments")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
