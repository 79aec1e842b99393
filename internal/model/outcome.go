package model

import "time"

// ProbeStatus classifies the result of one reachability probe.
type ProbeStatus int

const (
	// StatusReachable means the engine completed the delay test.
	StatusReachable ProbeStatus = iota

	// StatusTimeout means the test did not finish within the probe timeout.
	StatusTimeout

	// StatusHTTPError means the control API answered with a non-2xx status.
	StatusHTTPError

	// StatusConnectionError means the control API could not be reached.
	StatusConnectionError

	// StatusUnsupported means the node cannot be expressed as an engine
	// outbound and was never probed.
	StatusUnsupported
)

// String returns a short lower-case name of the status.
func (s ProbeStatus) String() string {
	switch s {
	case StatusReachable:
		return "reachable"
	case StatusTimeout:
		return "timeout"
	case StatusHTTPError:
		return "http_error"
	case StatusConnectionError:
		return "connection_error"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ProbeOutcome is the immutable result of probing one outbound.
type ProbeOutcome struct {
	// Identifier is the outbound identifier in the engine configuration.
	Identifier string

	Status ProbeStatus

	// Latency is set only for reachable outcomes.
	Latency time.Duration

	// Reason explains an unreachable outcome.
	Reason string
}

// Reachable reports whether the probe succeeded.
func (o ProbeOutcome) Reachable() bool {
	return o.Status == StatusReachable
}
