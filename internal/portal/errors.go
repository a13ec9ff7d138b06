package portal

import (
	"errors"
	"fmt"
	"time"
)

// Common portal client errors
var (
	// ErrAuthExpired is returned when the session is no longer accepted
	// and a renewal attempt did not help.
	ErrAuthExpired = errors.New("portal session expired")

	// ErrRateLimited is returned when the portal throttled the call and
	// the bounded retry budget ran out.
	ErrRateLimited = errors.New("portal rate limit exceeded")

	// ErrNotFound is returned when a content fetch targets an invoice
	// whose listing entry has disappeared.
	ErrNotFound = errors.New("invoice not found")

	// ErrTransient is returned when a network or server failure persisted
	// past the bounded retry budget.
	ErrTransient = errors.New("transient portal failure")
)

// PortalError wraps errors with additional context about portal call failures.
type PortalError struct {
	// Op is the operation that failed (e.g., "ListPage", "FetchContent").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// RetryAfter is the backoff hint from the portal, if it sent one.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *PortalError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("portal: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("portal: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PortalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *PortalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newPortalError(op string, err error, details string) *PortalError {
	return &PortalError{Op: op, Err: err, Details: details}
}
