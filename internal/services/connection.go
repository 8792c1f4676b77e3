package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/storage"
	"github.com/atendezap/atendezap-backend/internal/transport"
)

const (
	maxReconnectAttempts = 5
	baseReconnectDelay   = 1000 * time.Millisecond
	maxReconnectDelay    = 30000 * time.Millisecond
	dialTimeout          = 30 * time.Second
)

// ErrConnectionNotFound is returned when no connection record exists for an id
var ErrConnectionNotFound = errors.New("connection not found")

// ErrReconnectLimit is returned when the attempt cap for an id is exhausted;
// the connection needs manual re-authentication
var ErrReconnectLimit = errors.New("reconnect limit exceeded")

// MessageHandler receives inbound chat messages from live sockets
type MessageHandler func(connectionID, from, text string, timestamp time.Time)

// ConnectionStatusInfo is the per-connection view exposed to the status API
type ConnectionStatusInfo struct {
	ID            string                  `json:"id"`
	Status        models.ConnectionStatus `json:"status"`
	Authenticated bool                    `json:"authenticated"`
	PhoneNumber   string                  `json:"phone_number,omitempty"`
}

// ConnectionManager owns every live socket and its lifecycle: dialing,
// credential persistence, reconnect backoff, logout. All mutation of the
// socket map and attempt counters goes through its methods.
type ConnectionManager struct {
	store     storage.Store
	transport transport.Transport

	mu         sync.Mutex
	sockets    map[string]transport.Socket
	statuses   map[string]models.ConnectionStatus
	phones     map[string]string
	qrCodes    map[string]string
	attempts   map[string]int
	timers     map[string]*time.Timer
	challenges map[string]func(qr string)

	onMessage MessageHandler
}

// Singleton instance
var connectionManagerInstance *ConnectionManager

// SetConnectionManager sets the global connection manager (call from main.go)
func SetConnectionManager(cm *ConnectionManager) {
	connectionManagerInstance = cm
}

// GetConnectionManager returns the global connection manager instance
func GetConnectionManager() *ConnectionManager {
	return connectionManagerInstance
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(store storage.Store, tr transport.Transport) *ConnectionManager {
	return &ConnectionManager{
		store:      store,
		transport:  tr,
		sockets:    make(map[string]transport.Socket),
		statuses:   make(map[string]models.ConnectionStatus),
		phones:     make(map[string]string),
		qrCodes:    make(map[string]string),
		attempts:   make(map[string]int),
		timers:     make(map[string]*time.Timer),
		challenges: make(map[string]func(string)),
	}
}

// SetMessageHandler registers the inbound-message callback (the router)
func (cm *ConnectionManager) SetMessageHandler(h MessageHandler) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onMessage = h
}

// Connect establishes or restores a transport session for the connection id.
// Persisted credentials are reused when present. onChallenge is invoked with
// the pairing artifact (QR) if the transport requires a fresh pairing; it may
// be nil.
func (cm *ConnectionManager) Connect(connectionID string, onChallenge func(qr string)) error {
	cm.mu.Lock()
	if cm.attempts[connectionID] >= maxReconnectAttempts {
		cm.mu.Unlock()
		return fmt.Errorf("%w for %s", ErrReconnectLimit, connectionID)
	}
	if _, exists := cm.sockets[connectionID]; exists {
		cm.mu.Unlock()
		return nil // already connecting or connected
	}
	if onChallenge != nil {
		cm.challenges[connectionID] = onChallenge
	}
	cm.statuses[connectionID] = models.StatusConnecting
	cm.mu.Unlock()

	cm.persistStatus(connectionID, models.StatusConnecting, "")

	var creds []byte
	if cred, err := cm.store.GetCredential(connectionID); err == nil {
		creds = cred.Blob
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	sock, err := cm.transport.Dial(ctx, connectionID, creds)
	if err != nil {
		log.Printf("❌ Failed to connect %s: %v", connectionID, err)
		cm.mu.Lock()
		cm.statuses[connectionID] = models.StatusDisconnected
		cm.scheduleReconnectLocked(connectionID)
		status := cm.statuses[connectionID]
		cm.mu.Unlock()
		cm.persistStatus(connectionID, status, "")
		return err
	}

	cm.mu.Lock()
	cm.sockets[connectionID] = sock
	cm.mu.Unlock()

	go cm.eventLoop(connectionID, sock)
	return nil
}

// eventLoop translates socket events into state machine transitions.
// One loop runs per live socket; it exits when the socket's event channel
// closes.
func (cm *ConnectionManager) eventLoop(connectionID string, sock transport.Socket) {
	for ev := range sock.Events() {
		switch ev.Type {
		case transport.EventConnectionUpdate:
			cm.handleConnectionUpdate(connectionID, sock, ev)
		case transport.EventCredentialsUpdate:
			// Full overwrite so a crash mid-write can't leave a merged
			// half-state behind
			if err := cm.store.SaveCredential(connectionID, ev.Credentials); err != nil {
				log.Printf("⚠️  Durability risk: failed to persist credentials for %s: %v", connectionID, err)
			}
		case transport.EventMessageReceived:
			if ev.FromMe {
				continue
			}
			cm.mu.Lock()
			handler := cm.onMessage
			cm.mu.Unlock()
			if handler != nil {
				handler(connectionID, ev.From, ev.Text, ev.Timestamp)
			}
		}
	}
}

func (cm *ConnectionManager) handleConnectionUpdate(connectionID string, sock transport.Socket, ev transport.Event) {
	switch {
	case ev.QRCode != "":
		log.Printf("📷 Pairing challenge received for %s", connectionID)
		cm.mu.Lock()
		cm.statuses[connectionID] = models.StatusQRPending
		cm.qrCodes[connectionID] = ev.QRCode
		challenge := cm.challenges[connectionID]
		cm.mu.Unlock()
		cm.persistStatus(connectionID, models.StatusQRPending, "")
		if challenge != nil {
			challenge(ev.QRCode)
		}

	case ev.Connected:
		log.Printf("✅ Connection %s authenticated as %s", connectionID, ev.Phone)
		cm.mu.Lock()
		cm.statuses[connectionID] = models.StatusConnected
		cm.phones[connectionID] = ev.Phone
		cm.attempts[connectionID] = 0 // counter resets on any authenticated connection
		delete(cm.qrCodes, connectionID)
		cm.mu.Unlock()
		cm.persistStatus(connectionID, models.StatusConnected, ev.Phone)

	case ev.CloseReason == transport.CloseLoggedOut:
		log.Printf("🚪 Connection %s logged out - purging credentials", connectionID)
		cm.mu.Lock()
		cm.dropSocketLocked(connectionID)
		cm.statuses[connectionID] = models.StatusDisconnected
		cm.mu.Unlock()
		if err := cm.store.DeleteCredential(connectionID); err != nil {
			log.Printf("⚠️  Failed to delete credentials for %s: %v", connectionID, err)
		}
		cm.persistStatus(connectionID, models.StatusDisconnected, "")

	case ev.CloseReason == transport.CloseRecoverable:
		log.Printf("🔌 Connection %s dropped - scheduling reconnect", connectionID)
		cm.mu.Lock()
		cm.dropSocketLocked(connectionID)
		cm.statuses[connectionID] = models.StatusDisconnected
		cm.scheduleReconnectLocked(connectionID)
		cm.mu.Unlock()
	}
}

// scheduleReconnectLocked arms a single backoff timer for the id. Caller
// must hold cm.mu. A pending timer makes this a no-op; exhausting the cap
// surfaces the error state instead of arming another timer.
func (cm *ConnectionManager) scheduleReconnectLocked(connectionID string) {
	if _, pending := cm.timers[connectionID]; pending {
		return
	}
	if cm.attempts[connectionID] >= maxReconnectAttempts {
		log.Printf("❌ Reconnect limit exceeded for %s - manual re-authentication required", connectionID)
		cm.statuses[connectionID] = models.StatusError
		go cm.persistStatus(connectionID, models.StatusError, "")
		return
	}

	delay := reconnectDelay(cm.attempts[connectionID])
	cm.attempts[connectionID]++

	log.Printf("⏳ Reconnecting %s in %v (attempt %d/%d)", connectionID, delay, cm.attempts[connectionID], maxReconnectAttempts)
	cm.timers[connectionID] = time.AfterFunc(delay, func() {
		cm.mu.Lock()
		delete(cm.timers, connectionID)
		cm.mu.Unlock()
		if err := cm.Connect(connectionID, nil); err != nil {
			log.Printf("❌ Reconnect attempt for %s failed: %v", connectionID, err)
		}
	})
}

// reconnectDelay computes the backoff for the given attempt count:
// 1000 * 2^attempts milliseconds, capped at 30 seconds
func reconnectDelay(attempts int) time.Duration {
	delay := baseReconnectDelay << attempts
	if delay > maxReconnectDelay || delay <= 0 {
		delay = maxReconnectDelay
	}
	return delay
}

// Disconnect requests logout from the transport, deletes persisted
// credentials and marks the connection disconnected. Idempotent.
func (cm *ConnectionManager) Disconnect(connectionID string) error {
	cm.mu.Lock()
	if timer, ok := cm.timers[connectionID]; ok {
		timer.Stop()
		delete(cm.timers, connectionID)
	}
	sock := cm.sockets[connectionID]
	cm.dropSocketLocked(connectionID)
	cm.statuses[connectionID] = models.StatusDisconnected
	cm.attempts[connectionID] = 0
	delete(cm.challenges, connectionID)
	cm.mu.Unlock()

	if sock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sock.Logout(ctx); err != nil {
			log.Printf("⚠️  Logout request for %s failed: %v", connectionID, err)
		}
		cancel()
		sock.Close()
	}

	if err := cm.store.DeleteCredential(connectionID); err != nil {
		log.Printf("⚠️  Failed to delete credentials for %s: %v", connectionID, err)
	}
	cm.persistStatus(connectionID, models.StatusDisconnected, "")
	return nil
}

// Reconnect drops the current socket (if any) and dials again, subject to
// the same attempt cap as automatic reconnection
func (cm *ConnectionManager) Reconnect(connectionID string) error {
	cm.mu.Lock()
	sock := cm.sockets[connectionID]
	cm.dropSocketLocked(connectionID)
	cm.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
	return cm.Connect(connectionID, nil)
}

// RestoreAll reconnects every persisted connection that was connected before
// the process stopped. Per-connection failures downgrade that record to
// disconnected instead of aborting the batch.
func (cm *ConnectionManager) RestoreAll() {
	conns, err := cm.store.GetConnectionsByStatus(models.StatusConnected)
	if err != nil {
		log.Printf("❌ Failed to query connections for restore: %v", err)
		return
	}

	log.Printf("🔄 Restoring %d persisted connection(s)...", len(conns))
	for _, conn := range conns {
		if err := cm.Connect(conn.ID, nil); err != nil {
			log.Printf("❌ Failed to restore connection %s: %v", conn.ID, err)
			cm.persistStatus(conn.ID, models.StatusDisconnected, "")
		}
	}
}

// SendText sends a message through the live socket for the connection.
// Returns ErrConnectionNotFound when no record exists, or a
// "connection not active" error when the socket is missing or
// unauthenticated.
func (cm *ConnectionManager) SendText(connectionID, to, text string) error {
	cm.mu.Lock()
	sock, live := cm.sockets[connectionID]
	authenticated := cm.phones[connectionID] != ""
	status := cm.statuses[connectionID]
	cm.mu.Unlock()

	if !live || !authenticated {
		if _, err := cm.store.GetConnection(connectionID); err != nil {
			return ErrConnectionNotFound
		}
		if status == "" {
			status = models.StatusDisconnected
		}
		return fmt.Errorf("connection not active (status=%s)", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return sock.SendText(ctx, to, text)
}

// IsConnected reports whether the transport has an authenticated identity
// for the connection
func (cm *ConnectionManager) IsConnected(connectionID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, live := cm.sockets[connectionID]
	return live && cm.phones[connectionID] != ""
}

// GetStatus returns the in-memory lifecycle status for the connection
func (cm *ConnectionManager) GetStatus(connectionID string) models.ConnectionStatus {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if status, ok := cm.statuses[connectionID]; ok {
		return status
	}
	return models.StatusDisconnected
}

// GetSocket returns the live socket for the connection, if any
func (cm *ConnectionManager) GetSocket(connectionID string) (transport.Socket, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	sock, ok := cm.sockets[connectionID]
	return sock, ok
}

// GetQRCode returns the latest pending pairing challenge for the connection
func (cm *ConnectionManager) GetQRCode(connectionID string) (string, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	qr, ok := cm.qrCodes[connectionID]
	return qr, ok
}

// UnauthenticatedLive returns ids that hold a live socket without an
// authenticated identity (the liveness monitor's reconnect candidates)
func (cm *ConnectionManager) UnauthenticatedLive() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var ids []string
	for id := range cm.sockets {
		if cm.phones[id] == "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Statuses returns the status view of every known connection (persisted
// records merged with live state)
func (cm *ConnectionManager) Statuses() []ConnectionStatusInfo {
	conns, err := cm.store.GetAllConnections()
	if err != nil {
		log.Printf("❌ Failed to list connections: %v", err)
		conns = nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	var infos []ConnectionStatusInfo
	seen := make(map[string]bool)
	for _, conn := range conns {
		status := conn.Status
		if live, ok := cm.statuses[conn.ID]; ok {
			status = live
		}
		infos = append(infos, ConnectionStatusInfo{
			ID:            conn.ID,
			Status:        status,
			Authenticated: cm.phones[conn.ID] != "",
			PhoneNumber:   cm.phones[conn.ID],
		})
		seen[conn.ID] = true
	}
	for id, status := range cm.statuses {
		if !seen[id] {
			infos = append(infos, ConnectionStatusInfo{
				ID:            id,
				Status:        status,
				Authenticated: cm.phones[id] != "",
				PhoneNumber:   cm.phones[id],
			})
		}
	}
	return infos
}

// Shutdown cancels all pending reconnect timers and closes every socket
func (cm *ConnectionManager) Shutdown() {
	cm.mu.Lock()
	for id, timer := range cm.timers {
		timer.Stop()
		delete(cm.timers, id)
	}
	socks := make([]transport.Socket, 0, len(cm.sockets))
	for id, sock := range cm.sockets {
		socks = append(socks, sock)
		delete(cm.sockets, id)
	}
	cm.mu.Unlock()

	for _, sock := range socks {
		sock.Close()
	}
}

// dropSocketLocked removes the in-memory socket and authenticated identity.
// Caller must hold cm.mu.
func (cm *ConnectionManager) dropSocketLocked(connectionID string) {
	delete(cm.sockets, connectionID)
	delete(cm.phones, connectionID)
	delete(cm.qrCodes, connectionID)
}

// persistStatus mirrors the in-memory status into the durable connection
// record for external visibility. Failures are logged, never raised.
func (cm *ConnectionManager) persistStatus(connectionID string, status models.ConnectionStatus, phone string) {
	conn, err := cm.store.GetConnection(connectionID)
	if err != nil {
		log.Printf("⚠️  No connection record for %s - status %s not persisted", connectionID, status)
		return
	}

	conn.Status = status
	if phone != "" {
		conn.PhoneNumber = phone
	}
	if err := cm.store.UpdateConnection(conn); err != nil {
		log.Printf("⚠️  Failed to persist status for %s: %v", connectionID, err)
	}
}
