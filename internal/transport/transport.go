package transport

import (
	"context"
	"time"
)

// EventType identifies what a socket event carries
type EventType string

const (
	EventConnectionUpdate  EventType = "connection_update"
	EventCredentialsUpdate EventType = "credentials_update"
	EventMessageReceived   EventType = "message_received"
)

// CloseReason classifies why the transport reported a close
type CloseReason string

const (
	CloseNone        CloseReason = ""
	CloseRecoverable CloseReason = "recoverable" // transient drop, safe to reconnect
	CloseLoggedOut   CloseReason = "logged_out"  // explicit logout, credentials are dead
)

// Event is one notification from the transport layer. Type decides which
// fields are meaningful:
//   - EventConnectionUpdate: Connected, QRCode, Phone, CloseReason
//   - EventCredentialsUpdate: Credentials
//   - EventMessageReceived: From, Text, FromMe, Timestamp
type Event struct {
	Type        EventType
	Connected   bool
	QRCode      string
	Phone       string
	CloseReason CloseReason
	Credentials []byte
	From        string
	Text        string
	FromMe      bool
	Timestamp   time.Time
}

// Socket is one live transport session. Events() is closed when the socket
// dies; the final connection-update carries the close reason.
type Socket interface {
	Events() <-chan Event
	SendText(ctx context.Context, to, text string) error
	Logout(ctx context.Context) error
	Close() error
}

// Transport establishes sockets. creds is the opaque credential blob from a
// previous session, or nil to start a fresh pairing (QR challenge).
type Transport interface {
	Dial(ctx context.Context, connectionID string, creds []byte) (Socket, error)
}
