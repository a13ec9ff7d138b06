package auth

import (
	"bytes"
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

// PasswordKey returns the secret-store key holding the password for the
// given portal account.
func PasswordKey(email string) string {
	return "password:" + email
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordAuthenticator signs in with the configured email and a password
// held in the secret store.
type PasswordAuthenticator struct {
	baseURL string
	email   string
	store   secrets.Store
	client  *http.Client
	log     zerolog.Logger
}

func NewPasswordAuthenticator(baseURL, email string, store secrets.Store, client *http.Client) *PasswordAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PasswordAuthenticator{
		baseURL: baseURL,
		email:   email,
		store:   store,
		client:  client,
		log:     logger.WithComponent("auth"),
	}
}

// Login authenticates against the portal sign-in endpoint. A rejected
// password maps to ErrInvalidCredentials; an MFA/SSO challenge maps to
// ErrInteractiveRequired.
func (a *PasswordAuthenticator) Login(ctx context.Context) (*Session, error) {
	if a.email == "" {
		return nil, newAuthError("Login", ErrMissingCredentials, "portal email not configured")
	}

	password, err := a.store.Get(PasswordKey(a.email))
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, newAuthError("Login", ErrMissingCredentials,
			fmt.Sprintf("no password stored for %s, run `invoice-fetcher setup`", a.email))
	}
	if err != nil {
		return nil, newAuthError("Login", err, "read secret store")
	}

	a.log.Debug().Str("email", a.email).Msg("Signing in with password")

	resp, err := a.doLogin(ctx, password)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Str("email", a.email).
		Time("expires_at", resp.ExpiresAt).
		Msg("Authenticated with portal")

	return NewSession(resp.Token, resp.ExpiresAt, a.renewFunc(password)), nil
}

// renewFunc renews by re-running the password login; the portal does not
// extend password sessions in place.
func (a *PasswordAuthenticator) renewFunc(password string) RenewFunc {
	return func(ctx context.Context, _ string) (string, time.Time, error) {
		resp, err := a.doLogin(ctx, password)
		if err != nil {
			return "", time.Time{}, err
		}
		a.log.Info().Str("email", a.email).Msg("Session renewed")
		return resp.Token, resp.ExpiresAt, nil
	}
}

func (a *PasswordAuthenticator) doLogin(ctx context.Context, password string) (*sessionResponse, error) {
	body, err := json.Marshal(loginRequest{Email: a.email, Password: password})
	if err != nil {
		return nil, newAuthError("Login", err, "encode request")
	}

	url := a.baseURL + "/api/v1/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newAuthError("Login", err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, newAuthError("Login", err, "portal unreachable")
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		var sr sessionResponse
		if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
			return nil, newAuthError("Login", err, "decode response")
		}
		if sr.Token == "" {
			return nil, newAuthError("Login", ErrInvalidCredentials, "empty session token")
		}
		return &sr, nil
	case http.StatusUnauthorized:
		return nil, newAuthError("Login", ErrInvalidCredentials, "")
	case http.StatusForbidden:
		// The portal answers 403 with a challenge descriptor when MFA or
		// SSO is enforced for the account.
		return nil, newAuthError("Login", ErrInteractiveRequired, "")
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, newAuthError("Login",
			fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(body)), "")
	}
}
