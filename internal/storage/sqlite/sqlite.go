// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface. It replaces the browser localStorage of the original web client:
// the credential triple lives in a key/value table and received realtime
// events are kept in a small append-only log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tripcrew/tripcrew/internal/models"
	"github.com/tripcrew/tripcrew/internal/storage"
)

// Credential keys. Mirrors the localStorage keys of the original client.
const (
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyUsername     = "username"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadCredentials returns the persisted credential triple.
func (s *SQLiteStore) LoadCredentials(ctx context.Context) (storage.Credentials, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM credentials")
	if err != nil {
		return storage.Credentials{}, fmt.Errorf("failed to load credentials: %w", err)
	}
	defer rows.Close()

	var creds storage.Credentials
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return storage.Credentials{}, fmt.Errorf("failed to scan credential: %w", err)
		}
		switch key {
		case keyAccessToken:
			creds.AccessToken = value
		case keyRefreshToken:
			creds.RefreshToken = value
		case keyUsername:
			creds.Username = value
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Credentials{}, fmt.Errorf("failed to iterate credentials: %w", err)
	}

	return creds, nil
}

// SaveCredentials replaces the persisted credential triple in one transaction.
func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds storage.Credentials) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	pairs := map[string]string{
		keyAccessToken:  creds.AccessToken,
		keyRefreshToken: creds.RefreshToken,
		keyUsername:     creds.Username,
	}
	for key, value := range pairs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		)
		if err != nil {
			return fmt.Errorf("failed to save credential %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveAccessToken replaces only the access token. The renewal path calls this
// immediately after a successful refresh so later process starts stay
// authenticated.
func (s *SQLiteStore) SaveAccessToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		keyAccessToken, token,
	)
	if err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// ClearCredentials removes the whole triple atomically. Clearing an empty
// store succeeds and changes nothing.
func (s *SQLiteStore) ClearCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM credentials")
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// AppendNotification records a received realtime event. Events without a
// server id are assigned one locally.
func (s *SQLiteStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (id, type, message, created_at) VALUES (?, ?, ?, ?)",
		n.ID, n.Type, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent events, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, message, created_at FROM notifications ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return out, nil
}
