package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"invoicefetcher/internal/logger"
	"invoicefetcher/internal/secrets"
)

// SSOTokenKey returns the secret-store key holding the SSO session token
// for the given portal account.
func SSOTokenKey(email string) string {
	return "sso-token:" + email
}

// SSOAuthenticator reuses a session token obtained by completing the SSO
// flow in a browser and stored via `setup --sso`. It never drives the
// interactive flow itself; when no usable token exists the caller gets
// ErrInteractiveRequired and must repeat the browser step.
type SSOAuthenticator struct {
	baseURL string
	email   string
	store   secrets.Store
	client  *http.Client
	log     zerolog.Logger
}

func NewSSOAuthenticator(baseURL, email string, store secrets.Store, client *http.Client) *SSOAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SSOAuthenticator{
		baseURL: baseURL,
		email:   email,
		store:   store,
		client:  client,
		log:     logger.WithComponent("auth"),
	}
}

// Login validates the stored token against the renew endpoint, which also
// yields a fresh expiry. A rejected token means the browser session has
// lapsed and the interactive flow must be repeated.
func (a *SSOAuthenticator) Login(ctx context.Context) (*Session, error) {
	if a.email == "" {
		return nil, newAuthError("Login", ErrMissingCredentials, "portal email not configured")
	}

	token, err := a.store.Get(SSOTokenKey(a.email))
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, newAuthError("Login", ErrInteractiveRequired,
			fmt.Sprintf("no SSO session stored for %s, run `invoice-fetcher setup --sso`", a.email))
	}
	if err != nil {
		return nil, newAuthError("Login", err, "read secret store")
	}

	fresh, expiresAt, err := a.renewToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, newAuthError("Login", ErrInteractiveRequired,
				"stored SSO session expired, run `invoice-fetcher setup --sso`")
		}
		return nil, err
	}

	if fresh != token {
		// Keep the rotated token so the next run starts from it.
		if err := a.store.Set(SSOTokenKey(a.email), fresh); err != nil {
			a.log.Warn().Err(err).Msg("Failed to persist rotated SSO token")
		}
	}

	a.log.Info().
		Str("email", a.email).
		Time("expires_at", expiresAt).
		Msg("Authenticated with stored SSO session")

	return NewSession(fresh, expiresAt, a.renewToken), nil
}

func (a *SSOAuthenticator) renewToken(ctx context.Context, token string) (string, time.Time, error) {
	url := a.baseURL + "/api/v1/auth/renew"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, newAuthError("Renew", err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := a.client.Do(req)
	if err != nil {
		return "", time.Time{}, newAuthError("Renew", err, "portal unreachable")
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		var sr sessionResponse
		if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
			return "", time.Time{}, newAuthError("Renew", err, "decode response")
		}
		if sr.Token == "" {
			sr.Token = token
		}
		return sr.Token, sr.ExpiresAt, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", time.Time{}, newAuthError("Renew", ErrSessionExpired, "")
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", time.Time{}, newAuthError("Renew",
			fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(body)), "")
	}
}
