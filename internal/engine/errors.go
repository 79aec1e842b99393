package engine

import "errors"

var (
	// ErrStartup is returned when the engine process cannot be launched or
	// its control API does not become ready before the startup deadline.
	ErrStartup = errors.New("engine startup failed")

	// ErrTeardown is returned when the engine process could not be
	// confirmed stopped after a forced kill.
	ErrTeardown = errors.New("engine teardown failed")

	// ErrControlAPI is returned when the control API answers a readiness
	// request with an unexpected status.
	ErrControlAPI = errors.New("engine control API error")

	// ErrInvalidListener is returned when the control listener address is
	// unusable.
	ErrInvalidListener = errors.New("invalid control listener")

	// ErrAlreadyStarted is returned by Start on a running Process.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotRunning is returned when the control API is used before Start.
	ErrNotRunning = errors.New("engine is not running")
)
