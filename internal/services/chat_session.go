package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/storage"
)

// ChatSessionService owns per-conversation automation state. All writes for
// one session key run under that key's mutex, so an inbound activation can
// never race a reaper deactivation of the same conversation. Different
// sessions proceed in parallel.
type ChatSessionService struct {
	store storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChatSessionService creates a new chat session service
func NewChatSessionService(store storage.Store) *ChatSessionService {
	return &ChatSessionService{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *ChatSessionService) lockFor(sessionKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionKey] = lock
	}
	return lock
}

// GetOrCreate returns the session for the conversation, creating it with no
// active training on first contact
func (s *ChatSessionService) GetOrCreate(connectionID, counterparty string) (*models.ChatSession, error) {
	key := models.SessionKey(connectionID, counterparty)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetChatSession(key)
	if err == nil {
		return session, nil
	}

	session = &models.ChatSession{
		SessionKey:    key,
		ConnectionID:  connectionID,
		Counterparty:  counterparty,
		LastMessageAt: time.Now(),
	}
	if err := s.store.SaveChatSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", key, err)
	}
	return session, nil
}

// Activate sets the active training for the conversation. Any prior active
// training is overwritten - the at-most-one invariant is enforced by
// overwrite, not by rejecting concurrent activation.
func (s *ChatSessionService) Activate(connectionID, counterparty, trainingID string) error {
	key := models.SessionKey(connectionID, counterparty)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetChatSession(key)
	if err != nil {
		session = &models.ChatSession{
			SessionKey:   key,
			ConnectionID: connectionID,
			Counterparty: counterparty,
		}
	}

	now := time.Now()
	session.ActiveTrainingID = &trainingID
	session.TrainingStartedAt = &now
	return s.store.SaveChatSession(session)
}

// Deactivate clears the active training. No-op (not an error) when no
// session exists or none is active.
func (s *ChatSessionService) Deactivate(connectionID, counterparty string) error {
	key := models.SessionKey(connectionID, counterparty)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetChatSession(key)
	if err != nil {
		return nil
	}
	if session.ActiveTrainingID == nil {
		return nil
	}

	session.ActiveTrainingID = nil
	session.TrainingStartedAt = nil
	return s.store.SaveChatSession(session)
}

// RecordMessage bumps the message counter and the last-activity timestamp.
// Silently no-ops when no session exists rather than failing the message
// path.
func (s *ChatSessionService) RecordMessage(connectionID, counterparty string) error {
	key := models.SessionKey(connectionID, counterparty)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetChatSession(key)
	if err != nil {
		return nil
	}

	session.MessageCount++
	session.LastMessageAt = time.Now()
	return s.store.SaveChatSession(session)
}

// Get returns the session for a conversation, or an error when none exists
func (s *ChatSessionService) Get(connectionID, counterparty string) (*models.ChatSession, error) {
	return s.store.GetChatSession(models.SessionKey(connectionID, counterparty))
}
