package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/atendezap/atendezap-backend/internal/handlers"
	"github.com/atendezap/atendezap-backend/internal/middleware"
	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, cm *services.ConnectionManager, router *services.MessageRouter, aiConfigured bool) {
	connectionHandler := handlers.NewConnectionHandler(store, cm)
	messageHandler := handlers.NewMessageHandler(router)
	trainingHandler := handlers.NewTrainingHandler(store)
	webhookHandler := handlers.NewWebhookHandler(router)
	healthHandler := handlers.NewHealthHandler(aiConfigured)

	app.Get("/health", healthHandler.Check)

	// API routes
	api := app.Group("/api", middleware.RequireAPIKey())

	connections := api.Group("/connections")
	connections.Get("/", connectionHandler.List)
	connections.Post("/", connectionHandler.Create)
	connections.Get("/:id", connectionHandler.Get)
	connections.Post("/:id/connect", connectionHandler.Connect)
	connections.Get("/:id/qr", connectionHandler.QR)
	connections.Post("/:id/disconnect", connectionHandler.Disconnect)

	messages := api.Group("/messages")
	messages.Post("/send", messageHandler.Send)

	conversations := api.Group("/conversations")
	conversations.Post("/reset", messageHandler.Reset)
	conversations.Post("/assign", messageHandler.Assign)
	conversations.Get("/active-training", messageHandler.ActiveTraining)

	trainings := api.Group("/trainings")
	trainings.Post("/", trainingHandler.Create)
	trainings.Get("/", trainingHandler.List)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Gateway-push ingestion - ENVIRONMENT-AWARE VALIDATION
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/message", webhookHandler.HandleInbound)
		if os.Getenv("ENVIRONMENT") == "development" {
			println("⚠️  Webhook validation DISABLED for development")
		}
	} else {
		webhooks.Post("/message", middleware.RequireAPIKey(), webhookHandler.HandleInbound)
	}
}
