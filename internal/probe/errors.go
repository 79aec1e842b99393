package probe

import "errors"

var (
	// ErrControlAPIUnavailable is returned when every delay request of a
	// cycle failed to reach the control API. It separates a broken engine
	// from a cycle in which no node is healthy.
	ErrControlAPIUnavailable = errors.New("engine control API unavailable")

	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("invalid probe parameters")
)
