package models

import (
	"time"
)

// Message is one recorded chat message, inbound or outbound. Append-only;
// used both as conversation context for the AI and as an audit trail.
type Message struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ConnectionID string    `json:"connection_id" gorm:"index"`
	Counterparty string    `json:"counterparty" gorm:"index"`
	FromMe       bool      `json:"from_me"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
}
