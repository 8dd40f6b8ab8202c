package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates a transport-level failure (connection refused,
	// timeout, DNS). The request may or may not have reached the server.
	ErrNetwork = errors.New("network failure")

	// ErrSessionExpired indicates the renewal protocol could not repair the
	// session. The stored credentials have been cleared; the caller should
	// send the user back to login.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// ServerError is any non-2xx response outside the renewal protocol. It is
// surfaced verbatim to the caller; the adapter never retries it.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
}

// IsStatus reports whether err is a ServerError with the given status code.
func IsStatus(err error, status int) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Status == status
}
