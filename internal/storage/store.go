// Package storage provides abstractions for durable client-local state.
package storage

import (
	"context"

	"github.com/tripcrew/tripcrew/internal/models"
)

// Credentials is the persisted session triple. The three values are written
// and cleared together; a partially-cleared triple must never be observable.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Username     string
}

// Empty reports whether no session is persisted.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.Username == ""
}

// Store defines the interface for client-local persistence. This abstraction
// allows swapping the backing store (SQLite, flat file, OS keychain) without
// changing the session layer.
type Store interface {
	// LoadCredentials returns the persisted credential triple. A store with
	// no persisted session returns an empty Credentials and no error.
	LoadCredentials(ctx context.Context) (Credentials, error)

	// SaveCredentials replaces the persisted credential triple.
	SaveCredentials(ctx context.Context, creds Credentials) error

	// SaveAccessToken replaces only the access token, leaving the refresh
	// token and username untouched. Used by the renewal path.
	SaveAccessToken(ctx context.Context, token string) error

	// ClearCredentials removes all persisted session state atomically.
	// Clearing an empty store is a no-op.
	ClearCredentials(ctx context.Context) error

	// AppendNotification records a received realtime event.
	AppendNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications returns the most recent events, newest first,
	// capped at limit.
	ListNotifications(ctx context.Context, limit int) ([]models.Notification, error)

	// Close releases any resources held by the store.
	Close() error
}
