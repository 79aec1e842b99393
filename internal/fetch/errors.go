package fetch

import (
	"errors"
	"fmt"
)

// Fetch failure classes. An *Error always wraps one of them.
var (
	// ErrInvalidURL is returned for unparsable or non-http(s) URLs.
	ErrInvalidURL = errors.New("invalid subscription url")

	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrRedirectScheme is returned when a redirect leaves http/https.
	ErrRedirectScheme = errors.New("redirect target scheme is not http/https")

	// ErrTimeout is returned when the request exceeds its deadline.
	ErrTimeout = errors.New("fetch timed out")

	// ErrNetwork is returned when the server cannot be reached.
	ErrNetwork = errors.New("network error")

	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected http status")

	// ErrTooLarge is returned when the body exceeds the size limit.
	ErrTooLarge = errors.New("response body too large")

	// ErrInvalidProxy is returned for an unusable upstream proxy URL.
	ErrInvalidProxy = errors.New("invalid upstream proxy")
)

// Error describes a failed subscription download.
type Error struct {
	// URL is the requested subscription URL.
	URL string

	// StatusCode is the HTTP status for ErrStatus, otherwise 0.
	StatusCode int

	// Kind is one of the sentinel errors of this package.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %v %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)
	}
}

// Unwrap exposes the failure class and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
