package models

import (
	"time"
)

// ConnectionStatus represents the lifecycle state of a bot connection
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusQRPending    ConnectionStatus = "qr-pending"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Connection is one logical chat-socket identity (one bot account).
// The persisted record mirrors the in-memory status for external visibility.
type Connection struct {
	ID          string           `json:"id" gorm:"primaryKey"`
	Name        string           `json:"name"`
	Status      ConnectionStatus `json:"status"`
	PhoneNumber string           `json:"phone_number"` // set once authenticated
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
