// Package api wraps outbound requests to the trip-planning backend. It
// attaches the bearer credential, surfaces server errors verbatim, and
// transparently repairs an expired access token via the single-retry renewal
// protocol.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripcrew/tripcrew/internal/metrics"
)

// CredentialSource supplies the bearer credential and the session repair
// operations. Implemented by the session store; nil means the client runs
// unauthenticated.
type CredentialSource interface {
	// AccessToken returns the current access token, or "" when none is held.
	// An empty token is not an error; the request is sent unauthenticated.
	AccessToken() string

	// Renew exchanges the refresh token for a new access token. Single-shot:
	// it never retries internally. On success the new token is already
	// persisted and AccessToken returns it.
	Renew(ctx context.Context) error

	// Teardown clears the stored credential pair and identity. Called when
	// renewal fails or the resubmitted request is rejected again.
	Teardown(ctx context.Context) error
}

// Client is the HTTP adapter for the backend REST API.
type Client struct {
	baseURL string
	hc      *http.Client
	creds   CredentialSource
	logger  *slog.Logger
}

// New creates a Client for the given base URL. The timeout applies to every
// request; a zero timeout falls back to 15 seconds. creds may be nil for an
// unauthenticated client (signup, login).
func New(baseURL string, timeout time.Duration, creds CredentialSource) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		creds:   creds,
		logger:  slog.Default().With("component", "api"),
	}
}

// SetCredentials attaches a credential source after construction. Used at
// startup where the session store itself needs a Client for the refresh call.
func (c *Client) SetCredentials(creds CredentialSource) {
	c.creds = creds
}

// do sends one logical request. body (if non-nil) is JSON-encoded; out (if
// non-nil) receives the decoded JSON response.
//
// On a 403 response the adapter renews the access token and resubmits the
// original request exactly once. The retry budget lives in this call's own
// scope: a second 403, or a renewal failure, tears the session down and
// returns ErrSessionExpired. The forbidden status is the observed trigger in
// this backend; 401 does not start the protocol.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	requestID := uuid.New().String()
	retried := false

	for {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Request-Id", requestID)
		if c.creds != nil {
			if token := c.creds.AccessToken(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			metrics.RequestsTotal.WithLabelValues(method, "error").Inc()
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
		if readErr != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, readErr)
		}

		if resp.StatusCode == http.StatusForbidden && c.creds != nil {
			if retried {
				c.logger.Warn("Renewed token rejected, tearing session down",
					"method", method, "path", path, "request_id", requestID)
				c.teardown(ctx)
				return fmt.Errorf("%w: renewed token rejected", ErrSessionExpired)
			}
			retried = true

			c.logger.Debug("Access token rejected, renewing",
				"method", method, "path", path, "request_id", requestID)
			if err := c.creds.Renew(ctx); err != nil {
				c.teardown(ctx)
				return fmt.Errorf("%w: %v", ErrSessionExpired, err)
			}
			continue // resubmit the original request exactly once
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
}

func (c *Client) teardown(ctx context.Context) {
	if err := c.creds.Teardown(ctx); err != nil {
		c.logger.Error("Session teardown failed", "error", err)
	}
}
