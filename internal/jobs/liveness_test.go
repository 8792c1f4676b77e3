package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
	"github.com/atendezap/atendezap-backend/internal/transport"
)

type stubSocket struct {
	events    chan transport.Event
	closeOnce sync.Once
}

func (s *stubSocket) Events() <-chan transport.Event { return s.events }

func (s *stubSocket) SendText(_ context.Context, _, _ string) error { return nil }

func (s *stubSocket) Logout(_ context.Context) error { return nil }
func (s *stubSocket) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

type stubTransport struct {
	mu      sync.Mutex
	sockets []*stubSocket
}

func (t *stubTransport) Dial(_ context.Context, _ string, _ []byte) (transport.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &stubSocket{events: make(chan transport.Event, 4)}
	t.sockets = append(t.sockets, s)
	return s, nil
}

func (t *stubTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets)
}

func (t *stubTransport) last() *stubSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sockets[len(t.sockets)-1]
}

func TestCheckConnectionsReconnectsUnauthenticatedSockets(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := &stubTransport{}
	cm := services.NewConnectionManager(store, tr)
	monitor := NewLivenessMonitor(cm)

	_, err := store.CreateConnection(&models.Connection{ID: "conn-1", Status: models.StatusDisconnected})
	require.NoError(t, err)
	require.NoError(t, cm.Connect("conn-1", nil))
	require.Equal(t, 1, tr.dialCount())

	// Socket is live but never authenticated: the check must redial it
	monitor.CheckConnections()
	assert.Equal(t, 2, tr.dialCount())

	cm.Shutdown()
}

func TestCheckConnectionsLeavesAuthenticatedSocketsAlone(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := &stubTransport{}
	cm := services.NewConnectionManager(store, tr)
	monitor := NewLivenessMonitor(cm)

	_, err := store.CreateConnection(&models.Connection{ID: "conn-1", Status: models.StatusDisconnected})
	require.NoError(t, err)
	require.NoError(t, cm.Connect("conn-1", nil))

	tr.last().events <- transport.Event{
		Type:      transport.EventConnectionUpdate,
		Connected: true,
		Phone:     "5511999990000",
	}
	require.Eventually(t, func() bool { return cm.IsConnected("conn-1") }, time.Second, 5*time.Millisecond)

	monitor.CheckConnections()
	assert.Equal(t, 1, tr.dialCount(), "authenticated sockets must not be redialed")

	monitor.ReportStatus() // read-only pass over the same state

	cm.Shutdown()
}

func TestMonitorStartStop(t *testing.T) {
	cm := services.NewConnectionManager(storage.NewMemoryStore(), &stubTransport{})
	monitor := NewLivenessMonitor(cm)

	monitor.Start()
	monitor.Start() // second start is a logged no-op
	monitor.Stop()
	monitor.Stop()
}
