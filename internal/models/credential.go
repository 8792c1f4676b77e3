package models

import (
	"time"
)

// Credential stores the opaque transport credential blob for a connection.
// Writes are full overwrites (last-write-wins), never delta merges.
type Credential struct {
	ConnectionID string    `json:"connection_id" gorm:"primaryKey"`
	Blob         []byte    `json:"blob"`
	UpdatedAt    time.Time `json:"updated_at"`
}
