// Package session owns the authenticated session: the credential pair, the
// cached username, and their lifecycle across login, renewal, and logout.
// The pair is persisted in the client-local state store so later process
// starts stay authenticated without a fresh login.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tripcrew/tripcrew/internal/api"
	"github.com/tripcrew/tripcrew/internal/metrics"
	"github.com/tripcrew/tripcrew/internal/models"
	"github.com/tripcrew/tripcrew/internal/storage"
)

// ErrRefreshInvalid indicates the refresh token was rejected or absent. The
// session cannot be repaired; the user must log in again.
var ErrRefreshInvalid = errors.New("refresh token invalid")

// Ensure Session satisfies the adapter's credential contract.
var _ api.CredentialSource = (*Session)(nil)

// Session is the process-wide session state. All access goes through the
// mutex; the credential pair itself is never handed out to callers, only the
// access token for the Authorization header.
type Session struct {
	mu     sync.Mutex
	creds  storage.Credentials
	user   *models.User
	client *api.Client
	store  storage.Store
	logger *slog.Logger
}

// New creates a Session backed by the given store, loading any persisted
// credentials. The client must be the same adapter instance that will use
// this session as its credential source.
func New(ctx context.Context, client *api.Client, store storage.Store) (*Session, error) {
	creds, err := store.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}
	return &Session{
		creds:  creds,
		client: client,
		store:  store,
		logger: slog.Default().With("component", "session"),
	}, nil
}

// AccessToken returns the current access token, or "" when anonymous.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.AccessToken
}

// Username returns the cached username, or "" when anonymous.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Username
}

// CurrentUser returns the identity captured at login, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Bootstrap inspects the persisted state at process start. When both a
// username and an access token survive from a previous run the session is
// treated as likely still authenticated and the returned username should be
// fed to an aggregate view refresh. No network call is made either way.
func (s *Session) Bootstrap() (username string, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds.Username != "" && s.creds.AccessToken != "" {
		return s.creds.Username, true
	}
	return "", false
}

// Login performs the credential exchange and persists the resulting session.
//
// Policy for the divergent upstream behaviors around login tokens: when the
// login response carries a token pair it is captured and persisted here;
// when it does not, any previously persisted pair is kept and authenticated
// calls rely on /auth/refresh to mint a fresh access token. This keeps both
// observed server variants working.
func (s *Session) Login(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	resp, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.Username = username
	if resp.AccessToken != "" {
		s.creds.AccessToken = resp.AccessToken
	}
	if resp.RefreshToken != "" {
		s.creds.RefreshToken = resp.RefreshToken
	}
	user := resp.User
	s.user = &user

	if err := s.store.SaveCredentials(ctx, s.creds); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.logger.Info("Logged in", "username", username, "user_id", user.ID)
	return s.user, nil
}

// Renew exchanges the refresh token for a new access token. Single-shot: a
// rejected refresh token is final and surfaces as ErrRefreshInvalid. The new
// access token is persisted immediately so later process starts remain
// authenticated.
func (s *Session) Renew(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.creds.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		metrics.RenewalsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: no refresh token held", ErrRefreshInvalid)
	}

	token, err := s.client.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, api.ErrNetwork) {
			metrics.RenewalsTotal.WithLabelValues("network_error").Inc()
			return err
		}
		metrics.RenewalsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	s.mu.Lock()
	s.creds.AccessToken = token
	s.mu.Unlock()

	if err := s.store.SaveAccessToken(ctx, token); err != nil {
		return fmt.Errorf("failed to persist renewed token: %w", err)
	}

	metrics.RenewalsTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("Access token renewed")
	return nil
}

// Teardown clears the credential pair, cached username, and identity, both
// in memory and in the state store. Idempotent: tearing down an anonymous
// session changes nothing.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds.Empty() && s.user == nil {
		return nil
	}

	s.creds = storage.Credentials{}
	s.user = nil
	if err := s.store.ClearCredentials(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	s.logger.Info("Session cleared")
	return nil
}

// Logout ends the session. Alias of Teardown; the name matches the user
// action, Teardown matches the failure path in the adapter.
func (s *Session) Logout(ctx context.Context) error {
	return s.Teardown(ctx)
}

// ExpiresWithin reports whether the held access token expires within d. The
// token is parsed without signature verification; the client has no signing
// key and only needs the exp claim for early-renewal warnings. A missing or
// unparseable token reports true.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	s.mu.Lock()
	token := s.creds.AccessToken
	s.mu.Unlock()

	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Until(exp.Time) < d
}
