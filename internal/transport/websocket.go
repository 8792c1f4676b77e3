package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway frame types
const (
	frameHello      = "hello"
	frameHelloAck   = "hello_ack"
	frameQR         = "qr"
	frameAuth       = "authenticated"
	frameCreds      = "credentials"
	frameMessage    = "message"
	frameSend       = "send"
	frameLogout     = "logout"
	frameDisconnect = "disconnected"
)

// frame is the JSON envelope exchanged with the chat gateway
type frame struct {
	Type         string `json:"type"`
	Ts           int64  `json:"ts"`
	ConnectionID string `json:"connection_id,omitempty"`
	QRCode       string `json:"qr_code,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Credentials  string `json:"credentials,omitempty"` // base64 blob
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Text         string `json:"text,omitempty"`
	FromMe       bool   `json:"from_me,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// WebSocketTransport speaks JSON frames to a chat gateway over a websocket.
// The gateway owns the actual chat-network protocol; this side only maps
// frames to transport events.
type WebSocketTransport struct {
	GatewayURL string
}

// NewWebSocketTransport creates a transport pointed at the given gateway URL
// (e.g. "ws://localhost:8090/ws")
func NewWebSocketTransport(gatewayURL string) *WebSocketTransport {
	return &WebSocketTransport{GatewayURL: gatewayURL}
}

// Dial opens a gateway session for the connection id. Persisted credentials
// are passed in the hello frame so the gateway can restore the chat session
// without a new pairing.
func (t *WebSocketTransport) Dial(ctx context.Context, connectionID string, creds []byte) (Socket, error) {
	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, t.GatewayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	hello := frame{
		Type:         frameHello,
		Ts:           time.Now().UnixMilli(),
		ConnectionID: connectionID,
	}
	if len(creds) > 0 {
		hello.Credentials = base64.StdEncoding.EncodeToString(creds)
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write hello: %w", err)
	}

	// Wait for hello_ack before handing the socket out
	var ack frame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello_ack: %w", err)
	}
	if ack.Type != frameHelloAck {
		conn.Close()
		return nil, fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}

	s := &wsSocket{
		conn:         conn,
		connectionID: connectionID,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type wsSocket struct {
	conn         *websocket.Conn
	connectionID string
	events       chan Event
	done         chan struct{}
}

func (s *wsSocket) Events() <-chan Event {
	return s.events
}

func (s *wsSocket) SendText(ctx context.Context, to, text string) error {
	f := frame{
		Type:         frameSend,
		Ts:           time.Now().UnixMilli(),
		ConnectionID: s.connectionID,
		To:           to,
		Text:         text,
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	}
	return s.conn.WriteJSON(f)
}

func (s *wsSocket) Logout(ctx context.Context) error {
	f := frame{
		Type:         frameLogout,
		Ts:           time.Now().UnixMilli(),
		ConnectionID: s.connectionID,
	}
	return s.conn.WriteJSON(f)
}

func (s *wsSocket) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.conn.Close()
}

// readLoop translates gateway frames into transport events until the
// connection dies. The channel is closed after the final close event.
func (s *wsSocket) readLoop() {
	defer close(s.events)

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			select {
			case <-s.done:
				// Closed locally; no close event needed
				return
			default:
			}
			reason := CloseRecoverable
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				reason = CloseLoggedOut
			}
			s.events <- Event{Type: EventConnectionUpdate, CloseReason: reason}
			return
		}

		switch f.Type {
		case frameQR:
			s.events <- Event{Type: EventConnectionUpdate, QRCode: f.QRCode}
		case frameAuth:
			s.events <- Event{Type: EventConnectionUpdate, Connected: true, Phone: f.Phone}
		case frameCreds:
			blob, err := base64.StdEncoding.DecodeString(f.Credentials)
			if err != nil {
				log.Printf("⚠️  Bad credentials frame for %s: %v", s.connectionID, err)
				continue
			}
			s.events <- Event{Type: EventCredentialsUpdate, Credentials: blob}
		case frameMessage:
			ts := time.UnixMilli(f.Ts)
			s.events <- Event{Type: EventMessageReceived, From: f.From, Text: f.Text, FromMe: f.FromMe, Timestamp: ts}
		case frameDisconnect:
			reason := CloseRecoverable
			if f.Reason == "logged_out" {
				reason = CloseLoggedOut
			}
			s.events <- Event{Type: EventConnectionUpdate, CloseReason: reason}
			return
		default:
			log.Printf("Unknown gateway frame type: %s", f.Type)
		}
	}
}
