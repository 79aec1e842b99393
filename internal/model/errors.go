package model

import "errors"

// Node validation errors.
// NewNode and the Outbound variants return these wrapped with the
// offending field so callers can match them with errors.Is.
var (
	// ErrEmptyServer is returned when an outbound has no server host.
	ErrEmptyServer = errors.New("outbound server is empty")

	// ErrInvalidPort is returned when the server port is outside 1-65535.
	ErrInvalidPort = errors.New("outbound server port out of range")

	// ErrMissingCredential is returned when a password or uuid is empty.
	ErrMissingCredential = errors.New("outbound credential is empty")

	// ErrMissingMethod is returned when a cipher or security method is empty.
	ErrMissingMethod = errors.New("outbound cipher method is empty")

	// ErrInvalidOutbound is returned for any other inconsistent outbound.
	ErrInvalidOutbound = errors.New("invalid outbound")

	// ErrNilOutbound is returned when a node is built without an outbound.
	ErrNilOutbound = errors.New("node has no outbound")

	// ErrEmptyTag is returned when a node is built without a tag.
	ErrEmptyTag = errors.New("node tag is empty")

	// ErrInvalidOrigin is returned unless exactly one of the share link or
	// the declarative record is set.
	ErrInvalidOrigin = errors.New("node origin must be exactly one of link or record")
)
