// Package notify maintains the long-lived websocket subscription over which
// the server pushes notification events. The client never sends application
// messages on this channel.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tripcrew/tripcrew/internal/metrics"
	"github.com/tripcrew/tripcrew/internal/models"
	"github.com/tripcrew/tripcrew/internal/storage"
)

// Handler receives each decoded notification event.
type Handler func(models.Notification)

// Listener is the realtime notification subscription. It dials the broker
// endpoint with the bearer credential, decodes JSON events, logs them to the
// state store, and reconnects with capped backoff when the connection drops.
type Listener struct {
	url     string
	token   func() string
	store   storage.Store
	handler Handler

	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger *slog.Logger
}

// NewListener creates a Listener for the given websocket URL. token is
// called at every (re)connect so a renewed access token is picked up.
func NewListener(url string, token func() string, store storage.Store, handler Handler, initial, max time.Duration) *Listener {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = 30 * time.Second
	}
	return &Listener{
		url:            url,
		token:          token,
		store:          store,
		handler:        handler,
		initialBackoff: initial,
		maxBackoff:     max,
		logger:         slog.Default().With("component", "notify"),
	}
}

// Run connects and consumes events until ctx is cancelled. Connection drops
// trigger reconnection with exponential backoff capped at the configured
// maximum; Run only returns on cancellation.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.initialBackoff
	for {
		err := l.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("Notification channel dropped, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

// consume holds one connection open and dispatches its events.
func (l *Listener) consume(ctx context.Context) error {
	header := http.Header{}
	if token := l.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer conn.Close()
	l.logger.Info("Notification channel connected", "url", l.url)

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			l.logger.Warn("Dropping malformed notification", "error", err)
			continue
		}
		metrics.NotificationsTotal.Inc()

		if err := l.append(ctx, &n); err != nil {
			l.logger.Error("Failed to log notification", "error", err)
		}
		if l.handler != nil {
			l.handler(n)
		}
	}
}

// append logs one event, assigning a local id and receipt timestamp when the
// server provided none.
func (l *Listener) append(ctx context.Context, n *models.Notification) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().Unix()
	}
	return l.store.AppendNotification(ctx, n)
}
