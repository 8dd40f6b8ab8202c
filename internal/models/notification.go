package models

// Notification is a server-pushed event received over the realtime channel.
// The server does not guarantee an id on every event; the notify package
// assigns one locally before logging.
type Notification struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`

	// CreatedAt is the Unix timestamp when the event was received locally.
	CreatedAt int64 `json:"createdAt,omitempty"`
}
