package models

import (
	"time"
)

// Training activation modes
const (
	TrainingModeKeyword    = "keyword"    // activated when an inbound message matches a keyword
	TrainingModeAssignment = "assignment" // assigned to a conversation by the caller
)

// Training is an externally configured behavior profile (prompt, activation
// keywords, exit keywords, inactivity timeout) that a chat session can have
// active. The core only reads trainings; it never creates or edits them.
type Training struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	ConnectionID       string    `json:"connection_id" gorm:"index"`
	Name               string    `json:"name"`
	Mode               string    `json:"mode"`
	ActivationKeywords []string  `json:"activation_keywords" gorm:"serializer:json"`
	ExitKeywords       []string  `json:"exit_keywords" gorm:"serializer:json"`
	ExitMessage        string    `json:"exit_message"`
	InactivityTimeout  int       `json:"inactivity_timeout"` // minutes, 0 = disabled
	Prompt             string    `json:"prompt"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
