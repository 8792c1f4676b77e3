package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
)

// ConnectionHandler handles connection lifecycle requests
type ConnectionHandler struct {
	store storage.Store
	cm    *services.ConnectionManager
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(store storage.Store, cm *services.ConnectionManager) *ConnectionHandler {
	return &ConnectionHandler{
		store: store,
		cm:    cm,
	}
}

// List returns every known connection with its authenticated state
func (h *ConnectionHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connections": h.cm.Statuses(),
	})
}

// CreateConnectionRequest is the payload for creating a connection record
type CreateConnectionRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Create registers a new connection record in status disconnected
func (h *ConnectionHandler) Create(c *fiber.Ctx) error {
	var req CreateConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	conn, err := h.store.CreateConnection(&models.Connection{
		ID:     req.ID,
		Name:   req.Name,
		Status: models.StatusDisconnected,
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Printf("➕ Connection %s created", conn.ID)
	return c.Status(fiber.StatusCreated).JSON(conn)
}

// Get returns a single connection's status
func (h *ConnectionHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	conn, err := h.store.GetConnection(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "connection not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":            conn.ID,
		"name":          conn.Name,
		"status":        h.cm.GetStatus(id),
		"authenticated": h.cm.IsConnected(id),
		"phone_number":  conn.PhoneNumber,
	})
}

// Connect starts or restores the chat socket for a connection
func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.store.GetConnection(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "connection not found",
		})
	}

	if err := h.cm.Connect(id, func(qr string) {
		log.Printf("📷 QR challenge ready for %s - fetch via /api/connections/%s/qr", id, id)
	}); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  h.cm.GetStatus(id),
	})
}

// QR returns the latest pending pairing challenge for a connecting id
func (h *ConnectionHandler) QR(c *fiber.Ctx) error {
	id := c.Params("id")

	qr, ok := h.cm.GetQRCode(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no pairing challenge pending",
		})
	}

	return c.JSON(fiber.Map{
		"qr_code": qr,
	})
}

// Disconnect logs the connection out and purges its credentials. Idempotent.
func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.cm.Disconnect(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  models.StatusDisconnected,
	})
}
