package models

import (
	"strings"
	"time"
)

// ChatSession tracks automation state for one counterparty within one connection.
// At most one training is active per session at any time; the session is never
// hard-deleted, only reset by clearing the active-training fields.
type ChatSession struct {
	SessionKey        string     `json:"session_key" gorm:"primaryKey"`
	ConnectionID      string     `json:"connection_id" gorm:"index"`
	Counterparty      string     `json:"counterparty"`
	ActiveTrainingID  *string    `json:"active_training_id" gorm:"index"`
	TrainingStartedAt *time.Time `json:"training_started_at"`
	LastMessageAt     time.Time  `json:"last_message_at"`
	MessageCount      int        `json:"message_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SessionKey builds the deterministic composite key for a conversation:
// the connection id plus the digits-only counterparty identifier.
func SessionKey(connectionID, counterparty string) string {
	var b strings.Builder
	for _, r := range counterparty {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return connectionID + "_" + b.String()
}
