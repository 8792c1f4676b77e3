package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/atendezap/atendezap-backend/internal/models"
)

// DatabaseStore implements Store on top of PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Connection operations

func (d *DatabaseStore) CreateConnection(conn *models.Connection) (*models.Connection, error) {
	if err := d.db.Create(conn).Error; err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *DatabaseStore) GetConnection(id string) (*models.Connection, error) {
	var conn models.Connection
	if err := d.db.First(&conn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("connection not found")
		}
		return nil, err
	}
	return &conn, nil
}

func (d *DatabaseStore) GetAllConnections() ([]*models.Connection, error) {
	var conns []*models.Connection
	if err := d.db.Order("id").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (d *DatabaseStore) GetConnectionsByStatus(status models.ConnectionStatus) ([]*models.Connection, error) {
	var conns []*models.Connection
	if err := d.db.Where("status = ?", status).Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (d *DatabaseStore) UpdateConnection(conn *models.Connection) error {
	return d.db.Save(conn).Error
}

// Credential operations

func (d *DatabaseStore) SaveCredential(connectionID string, blob []byte) error {
	cred := models.Credential{
		ConnectionID: connectionID,
		Blob:         blob,
		UpdatedAt:    time.Now(),
	}
	// Full overwrite keyed by connection id (last-write-wins)
	return d.db.Save(&cred).Error
}

func (d *DatabaseStore) GetCredential(connectionID string) (*models.Credential, error) {
	var cred models.Credential
	if err := d.db.First(&cred, "connection_id = ?", connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("credential not found")
		}
		return nil, err
	}
	return &cred, nil
}

func (d *DatabaseStore) DeleteCredential(connectionID string) error {
	return d.db.Delete(&models.Credential{}, "connection_id = ?", connectionID).Error
}

// Chat session operations

func (d *DatabaseStore) GetChatSession(sessionKey string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := d.db.First(&session, "session_key = ?", sessionKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) SaveChatSession(session *models.ChatSession) error {
	return d.db.Save(session).Error
}

func (d *DatabaseStore) GetSessionsWithActiveTraining() ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	if err := d.db.Where("active_training_id IS NOT NULL").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Training operations

func (d *DatabaseStore) CreateTraining(training *models.Training) (*models.Training, error) {
	if err := d.db.Create(training).Error; err != nil {
		return nil, err
	}
	return training, nil
}

func (d *DatabaseStore) GetTraining(id string) (*models.Training, error) {
	var training models.Training
	if err := d.db.First(&training, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("training not found")
		}
		return nil, err
	}
	return &training, nil
}

func (d *DatabaseStore) GetTrainingsByConnection(connectionID string) ([]*models.Training, error) {
	var trainings []*models.Training
	if err := d.db.Where("connection_id = ?", connectionID).Order("id").Find(&trainings).Error; err != nil {
		return nil, err
	}
	return trainings, nil
}

func (d *DatabaseStore) GetKeywordTrainings(connectionID string) ([]*models.Training, error) {
	var trainings []*models.Training
	err := d.db.
		Where("connection_id = ? AND mode = ? AND is_active = ?", connectionID, models.TrainingModeKeyword, true).
		Order("id"). // deterministic first-match tie-break
		Find(&trainings).Error
	if err != nil {
		return nil, err
	}
	return trainings, nil
}

// Message operations

func (d *DatabaseStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := d.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *DatabaseStore) GetRecentMessages(connectionID, counterparty string, limit int) ([]*models.Message, error) {
	var msgs []*models.Message
	err := d.db.
		Where("connection_id = ? AND counterparty = ?", connectionID, counterparty).
		Order("timestamp DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// Query returns newest first; callers want oldest first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
