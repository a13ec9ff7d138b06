package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicefetcher/internal/auth"
	"invoicefetcher/internal/secrets"
)

func storeWithPassword(t *testing.T, email, password string) secrets.Store {
	t.Helper()
	store := secrets.NewMemory()
	require.NoError(t, store.Set(auth.PasswordKey(email), password))
	return store
}

func TestPasswordLogin(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Email != "user@example.com" || body.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"token":"tok-1","expires_at":%q}`, expiry.Format(time.RFC3339))
	}))
	defer srv.Close()

	a := auth.NewPasswordAuthenticator(srv.URL, "user@example.com",
		storeWithPassword(t, "user@example.com", "hunter2"), srv.Client())

	session, err := a.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", session.Token())
	assert.True(t, session.Valid(time.Now()))
	assert.Equal(t, expiry, session.ExpiresAt().UTC())
}

func TestPasswordLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := auth.NewPasswordAuthenticator(srv.URL, "user@example.com",
		storeWithPassword(t, "user@example.com", "wrong"), srv.Client())

	_, err := a.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestPasswordLoginInteractiveChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"challenge":"mfa"}`)
	}))
	defer srv.Close()

	a := auth.NewPasswordAuthenticator(srv.URL, "user@example.com",
		storeWithPassword(t, "user@example.com", "hunter2"), srv.Client())

	_, err := a.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrInteractiveRequired)
}

func TestPasswordLoginMissingSecret(t *testing.T) {
	a := auth.NewPasswordAuthenticator("http://unused", "user@example.com",
		secrets.NewMemory(), nil)

	_, err := a.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
}

func TestSessionRenew(t *testing.T) {
	renews := 0
	session := auth.NewSession("tok-1", time.Now().Add(-time.Minute),
		func(ctx context.Context, token string) (string, time.Time, error) {
			renews++
			assert.Equal(t, "tok-1", token)
			return "tok-2", time.Now().Add(time.Hour), nil
		})

	assert.False(t, session.Valid(time.Now()))
	require.NoError(t, session.Renew(context.Background()))
	assert.Equal(t, 1, renews)
	assert.Equal(t, "tok-2", session.Token())
	assert.True(t, session.Valid(time.Now()))
}

func TestSSOLoginWithoutStoredToken(t *testing.T) {
	a := auth.NewSSOAuthenticator("http://unused", "user@example.com",
		secrets.NewMemory(), nil)

	_, err := a.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrInteractiveRequired)
}

func TestSSOLoginValidatesAndRotatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/renew", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer stale":
			fmt.Fprintf(w, `{"token":"fresh","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
		case "Bearer dead":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			t.Errorf("unexpected token %q", r.Header.Get("Authorization"))
		}
	}))
	defer srv.Close()

	store := secrets.NewMemory()
	require.NoError(t, store.Set(auth.SSOTokenKey("user@example.com"), "stale"))

	a := auth.NewSSOAuthenticator(srv.URL, "user@example.com", store, srv.Client())
	session, err := a.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", session.Token())

	// The rotated token replaced the stored one.
	stored, err := store.Get(auth.SSOTokenKey("user@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored)

	// An expired browser session sends the user back to setup --sso.
	require.NoError(t, store.Set(auth.SSOTokenKey("user@example.com"), "dead"))
	_, err = a.Login(context.Background())
	assert.ErrorIs(t, err, auth.ErrInteractiveRequired)
}
