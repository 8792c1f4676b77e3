package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/storage"
)

// TrainingHandler exposes the minimal training admin surface. Trainings are
// owned by the dashboard; the core itself only reads them.
type TrainingHandler struct {
	store storage.Store
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(store storage.Store) *TrainingHandler {
	return &TrainingHandler{store: store}
}

// CreateTrainingRequest is the payload for registering a training
type CreateTrainingRequest struct {
	ID                 string   `json:"id"`
	ConnectionID       string   `json:"connection_id"`
	Name               string   `json:"name"`
	Mode               string   `json:"mode"`
	ActivationKeywords []string `json:"activation_keywords"`
	ExitKeywords       []string `json:"exit_keywords"`
	ExitMessage        string   `json:"exit_message"`
	InactivityTimeout  int      `json:"inactivity_timeout"`
	Prompt             string   `json:"prompt"`
}

// Create registers a training configuration
func (h *TrainingHandler) Create(c *fiber.Ctx) error {
	var req CreateTrainingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}
	if req.ConnectionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id is required",
		})
	}
	if req.Mode == "" {
		req.Mode = models.TrainingModeKeyword
	}
	if req.Mode != models.TrainingModeKeyword && req.Mode != models.TrainingModeAssignment {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be keyword or assignment",
		})
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	training, err := h.store.CreateTraining(&models.Training{
		ID:                 req.ID,
		ConnectionID:       req.ConnectionID,
		Name:               req.Name,
		Mode:               req.Mode,
		ActivationKeywords: req.ActivationKeywords,
		ExitKeywords:       req.ExitKeywords,
		ExitMessage:        req.ExitMessage,
		InactivityTimeout:  req.InactivityTimeout,
		Prompt:             req.Prompt,
		IsActive:           true,
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(training)
}

// List returns the trainings configured for a connection
func (h *TrainingHandler) List(c *fiber.Ctx) error {
	connectionID := c.Query("connection_id")
	if connectionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connection_id is required",
		})
	}

	trainings, err := h.store.GetTrainingsByConnection(connectionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"trainings": trainings,
	})
}
