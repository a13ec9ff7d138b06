// Package auth acquires and renews portal sessions. The sync core only
// sees the Session type and the Authenticator interface; whether a session
// came from a password login or an externally completed SSO flow is an
// implementation detail of the chosen authenticator.
package auth

import (
	"context"
	"sync"
	"time"
)

// RenewFunc refreshes a session token. Implementations return the new
// token and its expiry.
type RenewFunc func(ctx context.Context, token string) (string, time.Time, error)

// Session is an authenticated portal context. It is owned by a single sync
// run and discarded at run end; it is never persisted by the core. Reads
// are frequent, renewal is rare and exclusive.
type Session struct {
	mu              sync.Mutex
	token           string
	authenticatedAt time.Time
	expiresAt       time.Time
	renew           RenewFunc
}

// NewSession builds a session from a freshly obtained token.
func NewSession(token string, expiresAt time.Time, renew RenewFunc) *Session {
	return &Session{
		token:           token,
		authenticatedAt: time.Now(),
		expiresAt:       expiresAt,
		renew:           renew,
	}
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ExpiresAt returns the current token's expiry.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Valid reports whether the session is believed to still be accepted by
// the portal at the given instant.
func (s *Session) Valid(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && now.Before(s.expiresAt)
}

// Renew refreshes the session token in place. Renewal holds the session
// lock for its duration so concurrent readers never observe a half-updated
// token/expiry pair.
func (s *Session) Renew(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.renew == nil {
		return newAuthError("Renew", ErrSessionExpired, "session is not renewable")
	}

	token, expiresAt, err := s.renew(ctx, s.token)
	if err != nil {
		return err
	}

	s.token = token
	s.expiresAt = expiresAt
	s.authenticatedAt = time.Now()
	return nil
}

// Authenticator obtains a portal session. Variants: password login and
// externally completed SSO.
type Authenticator interface {
	Login(ctx context.Context) (*Session, error)
}
