// Package errkind gives the recoverable error kinds a concrete Go type: a
// Kind tag plus a wrapped cause, dispatched with errors.As in the manner
// of a sentinel-error taxonomy, but carrying a cause instead of being
// sentinels themselves (adapters and strategies need the underlying
// transport/JSON error for logging, not just the kind).
package errkind

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the recoverable error kinds. Shape, Transport, Protocol
// and RateLimit are all locally recovered (polling retries, streaming backs
// off); Cancelled unwinds silently; Misuse is raised synchronously to the
// caller and is never retried.
type Kind int

const (
	Transport Kind = iota
	Protocol
	RateLimit
	Shape
	Cancelled
	Misuse
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case RateLimit:
		return "rate_limit"
	case Shape:
		return "shape"
	case Cancelled:
		return "cancelled"
	case Misuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind, a wrapped cause, and
// (for RateLimit) an optional Retry-After hint.
type Error struct {
	Kind       Kind
	Cause      error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf wraps a formatted error with the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// RateLimited builds a RateLimit error carrying a Retry-After hint.
func RateLimited(cause error, retryAfter time.Duration) *Error {
	return &Error{Kind: RateLimit, Cause: cause, RetryAfter: retryAfter}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Transport for any error
// that wasn't constructed through this package (an unadorned network or
// decode error is presumptively a transport failure until proven
// otherwise).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Transport
}

// Recoverable reports whether the strategies should retry/backoff on this
// error rather than surface it to the caller.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case Misuse:
		return false
	default:
		return true
	}
}
