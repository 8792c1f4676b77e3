package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atendezap/atendezap-backend/internal/models"
)

// MemoryStore holds all data in memory for testing and local development
type MemoryStore struct {
	connections map[string]*models.Connection
	credentials map[string]*models.Credential
	sessions    map[string]*models.ChatSession
	trainings   map[string]*models.Training
	messages    []*models.Message

	// Mutexes for thread safety
	connMu    sync.RWMutex
	credMu    sync.RWMutex
	sessionMu sync.RWMutex
	trainMu   sync.RWMutex
	msgMu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*models.Connection),
		credentials: make(map[string]*models.Credential),
		sessions:    make(map[string]*models.ChatSession),
		trainings:   make(map[string]*models.Training),
	}
}

// Connection operations

func (m *MemoryStore) CreateConnection(conn *models.Connection) (*models.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if _, exists := m.connections[conn.ID]; exists {
		return nil, fmt.Errorf("connection already exists")
	}

	conn.CreatedAt = time.Now()
	conn.UpdatedAt = time.Now()
	m.connections[conn.ID] = conn
	return conn, nil
}

func (m *MemoryStore) GetConnection(id string) (*models.Connection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conn, exists := m.connections[id]
	if !exists {
		return nil, fmt.Errorf("connection not found")
	}
	return conn, nil
}

func (m *MemoryStore) GetAllConnections() ([]*models.Connection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conns := make([]*models.Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns, nil
}

func (m *MemoryStore) GetConnectionsByStatus(status models.ConnectionStatus) ([]*models.Connection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	var conns []*models.Connection
	for _, conn := range m.connections {
		if conn.Status == status {
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

func (m *MemoryStore) UpdateConnection(conn *models.Connection) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if _, exists := m.connections[conn.ID]; !exists {
		return fmt.Errorf("connection not found")
	}

	conn.UpdatedAt = time.Now()
	m.connections[conn.ID] = conn
	return nil
}

// Credential operations

func (m *MemoryStore) SaveCredential(connectionID string, blob []byte) error {
	m.credMu.Lock()
	defer m.credMu.Unlock()

	// Full overwrite, never a merge
	m.credentials[connectionID] = &models.Credential{
		ConnectionID: connectionID,
		Blob:         blob,
		UpdatedAt:    time.Now(),
	}
	return nil
}

func (m *MemoryStore) GetCredential(connectionID string) (*models.Credential, error) {
	m.credMu.RLock()
	defer m.credMu.RUnlock()

	cred, exists := m.credentials[connectionID]
	if !exists {
		return nil, fmt.Errorf("credential not found")
	}
	return cred, nil
}

func (m *MemoryStore) DeleteCredential(connectionID string) error {
	m.credMu.Lock()
	defer m.credMu.Unlock()

	delete(m.credentials, connectionID)
	return nil
}

// Chat session operations

func (m *MemoryStore) GetChatSession(sessionKey string) (*models.ChatSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[sessionKey]
	if !exists {
		return nil, fmt.Errorf("session not found")
	}
	// Hand out a snapshot, like a database row: the reaper reads sessions
	// outside the session service's per-key locks
	out := *session
	return &out, nil
}

func (m *MemoryStore) SaveChatSession(session *models.ChatSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = time.Now()
	stored := *session
	m.sessions[session.SessionKey] = &stored
	return nil
}

func (m *MemoryStore) GetSessionsWithActiveTraining() ([]*models.ChatSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var sessions []*models.ChatSession
	for _, session := range m.sessions {
		if session.ActiveTrainingID != nil {
			out := *session
			sessions = append(sessions, &out)
		}
	}
	return sessions, nil
}

// Training operations

func (m *MemoryStore) CreateTraining(training *models.Training) (*models.Training, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	if _, exists := m.trainings[training.ID]; exists {
		return nil, fmt.Errorf("training already exists")
	}

	training.CreatedAt = time.Now()
	training.UpdatedAt = time.Now()
	m.trainings[training.ID] = training
	return training, nil
}

func (m *MemoryStore) GetTraining(id string) (*models.Training, error) {
	m.trainMu.RLock()
	defer m.trainMu.RUnlock()

	training, exists := m.trainings[id]
	if !exists {
		return nil, fmt.Errorf("training not found")
	}
	return training, nil
}

func (m *MemoryStore) GetTrainingsByConnection(connectionID string) ([]*models.Training, error) {
	m.trainMu.RLock()
	defer m.trainMu.RUnlock()

	var trainings []*models.Training
	for _, training := range m.trainings {
		if training.ConnectionID == connectionID {
			trainings = append(trainings, training)
		}
	}
	sort.Slice(trainings, func(i, j int) bool { return trainings[i].ID < trainings[j].ID })
	return trainings, nil
}

func (m *MemoryStore) GetKeywordTrainings(connectionID string) ([]*models.Training, error) {
	m.trainMu.RLock()
	defer m.trainMu.RUnlock()

	var trainings []*models.Training
	for _, training := range m.trainings {
		if training.ConnectionID == connectionID && training.Mode == models.TrainingModeKeyword && training.IsActive {
			trainings = append(trainings, training)
		}
	}
	// Deterministic order so the first-match tie-break is stable
	sort.Slice(trainings, func(i, j int) bool { return trainings[i].ID < trainings[j].ID })
	return trainings, nil
}

// Message operations

func (m *MemoryStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *MemoryStore) GetRecentMessages(connectionID, counterparty string, limit int) ([]*models.Message, error) {
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()

	var matched []*models.Message
	for _, msg := range m.messages {
		if msg.ConnectionID == connectionID && msg.Counterparty == counterparty {
			matched = append(matched, msg)
		}
	}

	// Oldest first, trimmed to the last `limit` entries
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}
