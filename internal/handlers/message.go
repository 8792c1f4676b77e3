package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/atendezap/atendezap-backend/internal/services"
)

// MessageHandler handles manual sends and conversation-level operations
type MessageHandler struct {
	router *services.MessageRouter
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(router *services.MessageRouter) *MessageHandler {
	return &MessageHandler{router: router}
}

// SendRequest is the payload for a manual send
type SendRequest struct {
	ConnectionID string `json:"connection_id"`
	To           string `json:"to"`
	Text         string `json:"text"`
}

// Send delivers a caller-initiated message through the connection's socket
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}
	if req.ConnectionID == "" || req.To == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id, to and text are required",
		})
	}

	if err := h.router.SendManual(req.ConnectionID, req.To, req.Text); err != nil {
		status := fiber.StatusConflict
		if errors.Is(err, services.ErrConnectionNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// ConversationRequest identifies one conversation
type ConversationRequest struct {
	ConnectionID string `json:"connection_id"`
	Counterparty string `json:"counterparty"`
}

// Reset deactivates the conversation's training. Always succeeds, even when
// nothing was active.
func (h *MessageHandler) Reset(c *fiber.Ctx) error {
	var req ConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if err := h.router.ResetConversation(req.ConnectionID, req.Counterparty); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// ActiveTraining returns the training currently governing a conversation,
// or null
func (h *MessageHandler) ActiveTraining(c *fiber.Ctx) error {
	connectionID := c.Query("connection_id")
	counterparty := c.Query("counterparty")
	if connectionID == "" || counterparty == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id and counterparty are required",
		})
	}

	training, err := h.router.ActiveTraining(connectionID, counterparty)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"training": training,
	})
}

// AssignRequest assigns an assignment-mode training to a conversation
type AssignRequest struct {
	ConnectionID string `json:"connection_id"`
	Counterparty string `json:"counterparty"`
	TrainingID   string `json:"training_id"`
}

// Assign activates a training for a conversation without a keyword trigger
func (h *MessageHandler) Assign(c *fiber.Ctx) error {
	var req AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if err := h.router.AssignTraining(req.ConnectionID, req.Counterparty, req.TrainingID); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
