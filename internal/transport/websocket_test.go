package transport

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newGateway starts a fake chat gateway that answers the hello handshake and
// then hands the connection to script
func newGateway(t *testing.T, script func(t *testing.T, conn *websocket.Conn, hello frame)) *WebSocketTransport {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var hello frame
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		if err := conn.WriteJSON(frame{Type: frameHelloAck, Ts: time.Now().UnixMilli()}); err != nil {
			return
		}
		script(t, conn, hello)
	}))
	t.Cleanup(srv.Close)

	return NewWebSocketTransport("ws" + strings.TrimPrefix(srv.URL, "http"))
}

func readEvent(t *testing.T, sock Socket) Event {
	t.Helper()
	select {
	case ev, ok := <-sock.Events():
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDialSendsHelloWithCredentials(t *testing.T) {
	got := make(chan frame, 1)
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		got <- hello
		conn.ReadJSON(&frame{}) // hold the connection open until the client closes
	})

	sock, err := tr.Dial(context.Background(), "conn-1", []byte("session-keys"))
	require.NoError(t, err)
	defer sock.Close()

	hello := <-got
	assert.Equal(t, frameHello, hello.Type)
	assert.Equal(t, "conn-1", hello.ConnectionID)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("session-keys")), hello.Credentials)
	assert.NotZero(t, hello.Ts)
}

func TestDialOmitsCredentialsOnFreshPairing(t *testing.T) {
	got := make(chan frame, 1)
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		got <- hello
		conn.ReadJSON(&frame{})
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	hello := <-got
	assert.Empty(t, hello.Credentials)
}

func TestDialRejectsUnexpectedFirstFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadJSON(&frame{})
		conn.WriteJSON(frame{Type: frameQR, QRCode: "challenge"})
	}))
	t.Cleanup(srv.Close)

	tr := NewWebSocketTransport("ws" + strings.TrimPrefix(srv.URL, "http"))
	_, err := tr.Dial(context.Background(), "conn-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected hello_ack")
}

func TestFrameToEventMapping(t *testing.T) {
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		conn.WriteJSON(frame{Type: frameQR, QRCode: "pairing-artifact"})
		conn.WriteJSON(frame{Type: frameAuth, Phone: "5511999990000"})
		conn.WriteJSON(frame{Type: frameCreds, Credentials: base64.StdEncoding.EncodeToString([]byte("blob"))})
		conn.WriteJSON(frame{Type: frameMessage, From: "5521988887777", Text: "olá", Ts: 1700000000000})
		conn.ReadJSON(&frame{})
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	ev := readEvent(t, sock)
	assert.Equal(t, EventConnectionUpdate, ev.Type)
	assert.Equal(t, "pairing-artifact", ev.QRCode)

	ev = readEvent(t, sock)
	assert.Equal(t, EventConnectionUpdate, ev.Type)
	assert.True(t, ev.Connected)
	assert.Equal(t, "5511999990000", ev.Phone)

	ev = readEvent(t, sock)
	assert.Equal(t, EventCredentialsUpdate, ev.Type)
	assert.Equal(t, []byte("blob"), ev.Credentials)

	ev = readEvent(t, sock)
	assert.Equal(t, EventMessageReceived, ev.Type)
	assert.Equal(t, "5521988887777", ev.From)
	assert.Equal(t, "olá", ev.Text)
	assert.Equal(t, time.UnixMilli(1700000000000), ev.Timestamp)
}

func TestSendTextAndLogoutFrames(t *testing.T) {
	got := make(chan frame, 2)
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		for i := 0; i < 2; i++ {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			got <- f
		}
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.SendText(context.Background(), "5521988887777", "olá"))
	require.NoError(t, sock.Logout(context.Background()))

	send := <-got
	assert.Equal(t, frameSend, send.Type)
	assert.Equal(t, "conn-1", send.ConnectionID)
	assert.Equal(t, "5521988887777", send.To)
	assert.Equal(t, "olá", send.Text)

	logout := <-got
	assert.Equal(t, frameLogout, logout.Type)
	assert.Equal(t, "conn-1", logout.ConnectionID)
}

func TestDisconnectFrameMapsLogoutReason(t *testing.T) {
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		conn.WriteJSON(frame{Type: frameDisconnect, Reason: "logged_out"})
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	ev := readEvent(t, sock)
	assert.Equal(t, EventConnectionUpdate, ev.Type)
	assert.Equal(t, CloseLoggedOut, ev.CloseReason)

	_, open := <-sock.Events()
	assert.False(t, open, "event channel must close after the final close event")
}

func TestDisconnectFrameMapsRecoverableReason(t *testing.T) {
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		conn.WriteJSON(frame{Type: frameDisconnect, Reason: "stream_error"})
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	ev := readEvent(t, sock)
	assert.Equal(t, CloseRecoverable, ev.CloseReason)
}

func TestAbruptCloseIsRecoverable(t *testing.T) {
	tr := newGateway(t, func(t *testing.T, conn *websocket.Conn, hello frame) {
		conn.Close() // drop without a close frame
	})

	sock, err := tr.Dial(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	defer sock.Close()

	ev := readEvent(t, sock)
	assert.Equal(t, EventConnectionUpdate, ev.Type)
	assert.Equal(t, CloseRecoverable, ev.CloseReason)
}
