package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/atendezap/atendezap-backend/internal/services"
)

// WebhookHandler accepts inbound message events pushed over HTTP (gateway
// webhook mode and development testing). Socket-delivered messages take the
// same router path via the connection manager's message handler.
type WebhookHandler struct {
	router *services.MessageRouter
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(router *services.MessageRouter) *WebhookHandler {
	return &WebhookHandler{router: router}
}

// InboundPayload is an inbound message event
type InboundPayload struct {
	ConnectionID string `json:"connection_id"`
	From         string `json:"from"`
	Text         string `json:"text"`
}

// HandleInbound processes one inbound message event
func (h *WebhookHandler) HandleInbound(c *fiber.Ctx) error {
	var payload InboundPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}
	if payload.ConnectionID == "" || payload.From == "" || payload.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id, from and text are required",
		})
	}

	log.Printf("📱 Inbound message on %s from %s: %s", payload.ConnectionID, payload.From, payload.Text)

	result, err := h.router.HandleInbound(payload.ConnectionID, payload.From, payload.Text)
	if err != nil {
		log.Printf("❌ Error processing inbound message: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process message",
		})
	}

	if result.Status != 0 {
		return c.Status(result.Status).JSON(result)
	}
	return c.JSON(result)
}
