package services

import (
	"context"
	"sync"
	"time"

	"github.com/atendezap/atendezap-backend/internal/transport"
)

// fakeSocket is a scriptable transport.Socket for tests
type fakeSocket struct {
	mu        sync.Mutex
	events    chan transport.Event
	sent      []sentMessage
	sendErr   error
	loggedOut bool
	closeOnce sync.Once
}

type sentMessage struct {
	To   string
	Text string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{events: make(chan transport.Event, 16)}
}

func (s *fakeSocket) Events() <-chan transport.Event {
	return s.events
}

func (s *fakeSocket) SendText(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentMessage{To: to, Text: text})
	return nil
}

func (s *fakeSocket) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	return nil
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func (s *fakeSocket) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSocket) emitAuthenticated(phone string) {
	s.events <- transport.Event{Type: transport.EventConnectionUpdate, Connected: true, Phone: phone}
}

func (s *fakeSocket) emitQR(qr string) {
	s.events <- transport.Event{Type: transport.EventConnectionUpdate, QRCode: qr}
}

func (s *fakeSocket) emitCredentials(blob []byte) {
	s.events <- transport.Event{Type: transport.EventCredentialsUpdate, Credentials: blob}
}

func (s *fakeSocket) emitMessage(from, text string) {
	s.events <- transport.Event{Type: transport.EventMessageReceived, From: from, Text: text, Timestamp: time.Now()}
}

// emitClose reports a close and ends the event stream, like a real socket
func (s *fakeSocket) emitClose(reason transport.CloseReason) {
	s.events <- transport.Event{Type: transport.EventConnectionUpdate, CloseReason: reason}
	s.Close()
}

// fakeTransport hands out fake sockets and records dials
type fakeTransport struct {
	mu        sync.Mutex
	dialErr   error
	sockets   []*fakeSocket
	dials     int
	lastCreds []byte
}

func (t *fakeTransport) Dial(ctx context.Context, connectionID string, creds []byte) (transport.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	t.lastCreds = creds
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	s := newFakeSocket()
	t.sockets = append(t.sockets, s)
	return s, nil
}

func (t *fakeTransport) last() *fakeSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sockets) == 0 {
		return nil
	}
	return t.sockets[len(t.sockets)-1]
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// fakeCompleter returns a canned reply and records what it was asked
type fakeCompleter struct {
	mu         sync.Mutex
	reply      string
	err        error
	calls      int
	lastSystem string
	lastTurns  []ChatTurn
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, history []ChatTurn, userText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSystem = systemPrompt
	f.lastTurns = history
	f.lastUser = userText
	return f.reply, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
