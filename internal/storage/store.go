package storage

import (
	"github.com/atendezap/atendezap-backend/internal/models"
)

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations
type Store interface {
	// Connection operations
	CreateConnection(conn *models.Connection) (*models.Connection, error)
	GetConnection(id string) (*models.Connection, error)
	GetAllConnections() ([]*models.Connection, error)
	GetConnectionsByStatus(status models.ConnectionStatus) ([]*models.Connection, error)
	UpdateConnection(conn *models.Connection) error

	// Credential operations (full overwrite, last-write-wins)
	SaveCredential(connectionID string, blob []byte) error
	GetCredential(connectionID string) (*models.Credential, error)
	DeleteCredential(connectionID string) error

	// Chat session operations
	GetChatSession(sessionKey string) (*models.ChatSession, error)
	SaveChatSession(session *models.ChatSession) error
	GetSessionsWithActiveTraining() ([]*models.ChatSession, error)

	// Training operations (read-mostly; trainings are owned by the dashboard)
	CreateTraining(training *models.Training) (*models.Training, error)
	GetTraining(id string) (*models.Training, error)
	GetTrainingsByConnection(connectionID string) ([]*models.Training, error)
	GetKeywordTrainings(connectionID string) ([]*models.Training, error)

	// Message operations
	CreateMessage(msg *models.Message) (*models.Message, error)
	GetRecentMessages(connectionID, counterparty string, limit int) ([]*models.Message, error)
}
