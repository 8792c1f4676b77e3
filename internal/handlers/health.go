package handlers

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/atendezap/atendezap-backend/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	AIConfigured bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(aiConfigured bool) *HealthHandler {
	return &HealthHandler{
		AIConfigured: aiConfigured,
	}
}

// Check returns the health status of the service. Unreachable database
// degrades the status to 503 for the load balancer.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"service": "AtendeZap Backend",
		"services": fiber.Map{
			"database": status == "healthy",
			"ai":       h.AIConfigured,
		},
	})
}
