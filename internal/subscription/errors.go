package subscription

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Skip reasons for share links and records that do not become Nodes.
// A ParseError always unwraps to exactly one of them.
var (
	// ErrUnsupportedProtocol marks a recognized protocol without a parser
	// (vless, trojan).
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrMalformed marks input that could not be decoded or that is missing
	// a required field.
	ErrMalformed = errors.New("malformed input")
)

// snippetLimit bounds the input kept in a ParseError.
const snippetLimit = 80

// ParseError describes why a single link or record was skipped.
type ParseError struct {
	// Reason is ErrUnsupportedProtocol or ErrMalformed.
	Reason error

	// Scheme is the protocol prefix of the input without "://", or
	// "record" for declarative records.
	Scheme string

	// Snippet is the beginning of the offending input.
	Snippet string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("skip %s: %v", e.Scheme, e.Reason)
	}
	return fmt.Sprintf("skip %s: %v: %v", e.Scheme, e.Reason, e.Err)
}

// Unwrap returns both the skip reason and the cause so either can be
// matched with errors.Is.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func malformed(scheme, input string, err error) *ParseError {
	return &ParseError{Reason: ErrMalformed, Scheme: scheme, Snippet: truncateSnippet(input), Err: err}
}

func unsupported(scheme, input string) *ParseError {
	return &ParseError{Reason: ErrUnsupportedProtocol, Scheme: scheme, Snippet: truncateSnippet(input)}
}

func truncateSnippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetLimit {
		return s
	}
	return string([]rune(s)[:snippetLimit]) + "..."
}
