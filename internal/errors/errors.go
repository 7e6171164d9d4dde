// Package errors defines the gateway error taxonomy. Every failure that
// crosses a component boundary is wrapped around one of the sentinel errors
// below so callers can classify it with Is without depending on driver
// error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinel errors, one per taxonomy entry.
var (
	// ErrAdmissionDenied means the payload failed validation and was never
	// executed. Non-retryable.
	ErrAdmissionDenied = stderrors.New("admission denied")

	// ErrTimeout means the governor deadline elapsed before the backend
	// completed. The connection used is discarded.
	ErrTimeout = stderrors.New("query timeout")

	// ErrPoolExhausted means the bounded acquire wait elapsed with no free
	// connection.
	ErrPoolExhausted = stderrors.New("connection pool exhausted")

	// ErrUnavailable means the backend was unreachable or a protocol error
	// occurred. The connection used is discarded.
	ErrUnavailable = stderrors.New("backend unavailable")

	// ErrNotFound means the target object, table or collection does not exist.
	ErrNotFound = stderrors.New("object not found")
)

// Denied wraps ErrAdmissionDenied with the validator's reason.
func Denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAdmissionDenied, reason)
}

// Timeout wraps ErrTimeout with the elapsed budget description.
func Timeout(detail string) error {
	return fmt.Errorf("%w: %s", ErrTimeout, detail)
}

// Unavailable wraps a driver error as ErrUnavailable, hiding the driver type.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// NotFound wraps ErrNotFound for a named target.
func NotFound(target string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, target)
}

// IsRetryable reports whether the caller may usefully retry the same
// operation later. Admission and not-found failures are deterministic and
// never retryable.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrTimeout) ||
		stderrors.Is(err, ErrPoolExhausted) ||
		stderrors.Is(err, ErrUnavailable)
}

// Is re-exports the standard library matcher so callers of this package do
// not need a second errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As re-exports the standard library matcher.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New re-exports the standard library constructor.
func New(text string) error { return stderrors.New(text) }
