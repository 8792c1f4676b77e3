package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/atendezap/atendezap-backend/database"
	"github.com/atendezap/atendezap-backend/internal/jobs"
	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/routes"
	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
	"github.com/atendezap/atendezap-backend/internal/transport"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	gatewayURL := os.Getenv("CHAT_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "ws://localhost:8090/ws"
		log.Printf("⚠️  CHAT_GATEWAY_URL not set - using %s", gatewayURL)
	}

	// Initialize storage
	var store storage.Store

	// Check if we should use memory store (for testing)
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		// Connect to database
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		// Run migrations
		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Connection{},
			&models.Credential{},
			&models.ChatSession{},
			&models.Training{},
			&models.Message{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}
	storage.SetStore(store)

	// Initialize the AI completion capability
	var completer services.Completer
	genaiService, err := services.NewGenAIService()
	if err != nil {
		log.Printf("⚠️  GenAI service not initialized: %v - automated replies disabled", err)
	} else {
		completer = genaiService
		log.Println("✅ GenAI service initialized")
	}

	// Initialize core services
	chatTransport := transport.NewWebSocketTransport(gatewayURL)
	connectionManager := services.NewConnectionManager(store, chatTransport)
	services.SetConnectionManager(connectionManager)

	sessionService := services.NewChatSessionService(store)
	trainingEngine := services.NewTrainingEngine(store, sessionService, connectionManager)
	messageRouter := services.NewMessageRouter(store, sessionService, trainingEngine, connectionManager, completer)

	// Socket-delivered messages take the same path as webhook-pushed ones
	connectionManager.SetMessageHandler(func(connectionID, from, text string, _ time.Time) {
		if _, err := messageRouter.HandleInbound(connectionID, from, text); err != nil {
			log.Printf("❌ Error processing inbound message on %s: %v", connectionID, err)
		}
	})
	log.Println("✅ Core services initialized")

	// Restore connections that were live before the last shutdown
	connectionManager.RestoreAll()

	// Initialize and start background jobs
	inactivityReaper := jobs.NewInactivityReaper(store, sessionService)
	inactivityReaper.Start()

	livenessMonitor := jobs.NewLivenessMonitor(connectionManager)
	livenessMonitor.Start()

	log.Println("✅ All services initialized and background jobs started")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "AtendeZap Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Service banner with storage and connection status
	app.Get("/", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"service":     "AtendeZap Backend API",
			"version":     "1.0.0",
			"status":      "healthy",
			"environment": getEnvironment(),
			"storage":     getStorageType(),
			"gateway": fiber.Map{
				"url":        gatewayURL,
				"configured": os.Getenv("CHAT_GATEWAY_URL") != "",
			},
			"ai": fiber.Map{
				"configured": completer != nil,
			},
		}

		// Add database status if using database
		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			dbStatus := "connected"
			if err != nil {
				dbStatus = "error: " + err.Error()
			} else if err := sqlDB.Ping(); err != nil {
				dbStatus = "error: " + err.Error()
			}

			var connectionCount, trainingCount, sessionCount, messageCount int64
			database.DB.Model(&models.Connection{}).Count(&connectionCount)
			database.DB.Model(&models.Training{}).Count(&trainingCount)
			database.DB.Model(&models.ChatSession{}).Count(&sessionCount)
			database.DB.Model(&models.Message{}).Count(&messageCount)

			response["database"] = fiber.Map{
				"status":      dbStatus,
				"connections": connectionCount,
				"trainings":   trainingCount,
				"sessions":    sessionCount,
				"messages":    messageCount,
			}
		}

		response["services"] = fiber.Map{
			"connections": len(connectionManager.Statuses()),
			"background_jobs": fiber.Map{
				"inactivity_reaper": "active",
				"liveness_monitor":  "active",
			},
		}

		return c.JSON(response)
	})

	// Setup routes (includes the /health endpoint)
	routes.SetupRoutes(app, store, connectionManager, messageRouter, completer != nil)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping background jobs...")
		inactivityReaper.Stop()
		livenessMonitor.Stop()
		log.Println("⏹️  Closing chat sockets...")
		connectionManager.Shutdown()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 AtendeZap Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("🌍 Environment: %s", getEnvironment())
	log.Printf("🔌 Chat gateway: %s", gatewayURL)
	log.Printf("🤖 AI replies: %s", getAIStatus(completer))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getEnvironment() string {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return "Production (Cloud Run)"
	}
	return "Development (Local)"
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getAIStatus(completer services.Completer) string {
	if completer == nil {
		return "Not configured"
	}
	return "Configured"
}
