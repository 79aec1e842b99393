package pipeline

import "errors"

var (
	// ErrAllSourcesFailed is returned when no subscription of a cycle could
	// be fetched. The previous exports are left untouched.
	ErrAllSourcesFailed = errors.New("all subscription sources failed")

	// ErrMissingState is returned when a step runs before the step that
	// produces its input.
	ErrMissingState = errors.New("cycle state missing")
)
