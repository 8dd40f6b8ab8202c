package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/storage"
	"github.com/tripcrew/tripcrew/internal/storage/sqlite"
)

// authBackend fakes the login and refresh endpoints.
type authBackend struct {
	loginTokens   bool   // include the token pair in the login response
	refreshStatus int    // 0 means accept
	newToken      string // token minted by /auth/refresh
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]any{
			"userId":   int64(7),
			"username": req.Username,
			"fullName": "Asha Rao",
		}
		if b.loginTokens {
			resp["accessToken"] = "login-access"
			resp["refreshToken"] = "login-refresh"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshStatus != 0 {
			w.WriteHeader(b.refreshStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": b.newToken})
	})
	return mux
}

func newTestSession(t *testing.T, backend *authBackend) (*Session, storage.Store) {
	t.Helper()

	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	tempDir, err := os.MkdirTemp("", "tripcrew-session-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "state.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := api.New(server.URL, time.Second, nil)
	sess, err := New(context.Background(), client, store)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	client.SetCredentials(sess)
	return sess, store
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("captures and persists tokens from the login response", func(t *testing.T) {
		sess, store := newTestSession(t, &authBackend{loginTokens: true})

		user, err := sess.Login(ctx, "asha", "secret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if user.ID != 7 {
			t.Errorf("user id: got %d, want 7", user.ID)
		}
		if sess.AccessToken() != "login-access" {
			t.Errorf("access token: got %q", sess.AccessToken())
		}

		creds, err := store.LoadCredentials(ctx)
		if err != nil {
			t.Fatalf("LoadCredentials failed: %v", err)
		}
		if creds.AccessToken != "login-access" || creds.RefreshToken != "login-refresh" || creds.Username != "asha" {
			t.Errorf("persisted credentials mismatch: %+v", creds)
		}
	})

	t.Run("tokenless login keeps the previously persisted pair", func(t *testing.T) {
		sess, store := newTestSession(t, &authBackend{loginTokens: false})

		seed := storage.Credentials{AccessToken: "old-access", RefreshToken: "old-refresh", Username: "asha"}
		if err := store.SaveCredentials(ctx, seed); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		// A fresh session picks the persisted pair up.
		sess2, err := New(ctx, apiClientOf(sess), store)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		if _, err := sess2.Login(ctx, "asha", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if sess2.AccessToken() != "old-access" {
			t.Errorf("access token: got %q, want the kept pair", sess2.AccessToken())
		}
	})

	t.Run("rejected credentials surface the server status", func(t *testing.T) {
		sess, _ := newTestSession(t, &authBackend{})
		_, err := sess.Login(ctx, "asha", "wrong")
		if !api.IsStatus(err, http.StatusUnauthorized) {
			t.Fatalf("expected 401, got %v", err)
		}
	})
}

// apiClientOf rebuilds a client sharing the session's adapter; test helper
// for constructing a second session against the same backend.
func apiClientOf(s *Session) *api.Client {
	return s.client
}

func TestRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the renewed access token", func(t *testing.T) {
		backend := &authBackend{loginTokens: true, newToken: "renewed-access"}
		sess, store := newTestSession(t, backend)
		if _, err := sess.Login(ctx, "asha", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		if err := sess.Renew(ctx); err != nil {
			t.Fatalf("Renew failed: %v", err)
		}
		if sess.AccessToken() != "renewed-access" {
			t.Errorf("access token: got %q", sess.AccessToken())
		}

		creds, _ := store.LoadCredentials(ctx)
		if creds.AccessToken != "renewed-access" {
			t.Errorf("persisted token: got %q", creds.AccessToken)
		}
		if creds.RefreshToken != "login-refresh" {
			t.Errorf("refresh token changed: got %q", creds.RefreshToken)
		}
	})

	t.Run("no refresh token is RefreshInvalid", func(t *testing.T) {
		sess, _ := newTestSession(t, &authBackend{})
		err := sess.Renew(ctx)
		if !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected ErrRefreshInvalid, got %v", err)
		}
	})

	t.Run("rejected refresh token is RefreshInvalid", func(t *testing.T) {
		backend := &authBackend{loginTokens: true, refreshStatus: http.StatusUnauthorized}
		sess, _ := newTestSession(t, backend)
		if _, err := sess.Login(ctx, "asha", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		err := sess.Renew(ctx)
		if !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected ErrRefreshInvalid, got %v", err)
		}
	})
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()

	t.Run("clears memory and store", func(t *testing.T) {
		sess, store := newTestSession(t, &authBackend{loginTokens: true})
		if _, err := sess.Login(ctx, "asha", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		if err := sess.Teardown(ctx); err != nil {
			t.Fatalf("Teardown failed: %v", err)
		}
		if sess.AccessToken() != "" || sess.Username() != "" || sess.CurrentUser() != nil {
			t.Error("expected session to be empty after teardown")
		}
		creds, _ := store.LoadCredentials(ctx)
		if !creds.Empty() {
			t.Errorf("expected empty store, got %+v", creds)
		}
	})

	t.Run("idempotent on an anonymous session", func(t *testing.T) {
		sess, store := newTestSession(t, &authBackend{})
		if err := sess.Teardown(ctx); err != nil {
			t.Fatalf("Teardown on empty session failed: %v", err)
		}
		creds, _ := store.LoadCredentials(ctx)
		if !creds.Empty() {
			t.Errorf("empty should stay empty, got %+v", creds)
		}
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		creds storage.Credentials
		want  bool
	}{
		{"username and token present", storage.Credentials{AccessToken: "a", RefreshToken: "r", Username: "asha"}, true},
		{"token only", storage.Credentials{AccessToken: "a"}, false},
		{"username only", storage.Credentials{Username: "asha"}, false},
		{"nothing persisted", storage.Credentials{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, store := newTestSession(t, &authBackend{})
			if err := store.SaveCredentials(ctx, tt.creds); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			sess2, err := New(ctx, apiClientOf(sess), store)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			username, ok := sess2.Bootstrap()
			if ok != tt.want {
				t.Errorf("authenticated: got %v, want %v", ok, tt.want)
			}
			if tt.want && username != tt.creds.Username {
				t.Errorf("username: got %q, want %q", username, tt.creds.Username)
			}
		})
	}
}

func TestExpiresWithin(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(t, &authBackend{})

	signed := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": exp.Unix(),
		})
		s, _ := token.SignedString([]byte("test-key"))
		return s
	}

	t.Run("distant expiry is not imminent", func(t *testing.T) {
		store.SaveCredentials(ctx, storage.Credentials{AccessToken: signed(time.Now().Add(time.Hour)), Username: "asha"})
		s2, _ := New(ctx, apiClientOf(sess), store)
		if s2.ExpiresWithin(10 * time.Minute) {
			t.Error("token expiring in 1h reported as expiring within 10m")
		}
		if !s2.ExpiresWithin(2 * time.Hour) {
			t.Error("token expiring in 1h not reported as expiring within 2h")
		}
	})

	t.Run("missing or malformed token reports imminent", func(t *testing.T) {
		store.SaveCredentials(ctx, storage.Credentials{AccessToken: "not-a-jwt", Username: "asha"})
		s2, _ := New(ctx, apiClientOf(sess), store)
		if !s2.ExpiresWithin(time.Minute) {
			t.Error("malformed token should report imminent expiry")
		}

		store.ClearCredentials(ctx)
		s3, _ := New(ctx, apiClientOf(sess), store)
		if !s3.ExpiresWithin(time.Minute) {
			t.Error("absent token should report imminent expiry")
		}
	})
}
