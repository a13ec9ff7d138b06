package auth

import (
	"errors"
	"fmt"
)

// Common authentication errors
var (
	// ErrInvalidCredentials is returned when the portal rejects the
	// configured email/password pair.
	ErrInvalidCredentials = errors.New("invalid portal credentials")

	// ErrInteractiveRequired is returned when the portal demands an
	// interactive step (MFA or SSO) that this tool cannot perform
	// headlessly. The user must complete the flow in a browser and store
	// the resulting session token via `setup --sso`.
	ErrInteractiveRequired = errors.New("interactive sign-in required")

	// ErrSessionExpired is returned when a session token is no longer
	// accepted and cannot be renewed.
	ErrSessionExpired = errors.New("session expired")

	// ErrMissingCredentials is returned when no password or session token
	// is stored for the configured account.
	ErrMissingCredentials = errors.New("missing stored credentials")
)

// AuthError wraps errors with additional context about authentication failures.
type AuthError struct {
	// Op is the operation that failed (e.g., "Login", "Renew").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("auth: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("auth: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *AuthError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newAuthError(op string, err error, details string) *AuthError {
	return &AuthError{Op: op, Err: err, Details: details}
}
