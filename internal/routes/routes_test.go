package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
	"github.com/atendezap/atendezap-backend/internal/transport"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("USE_MEMORY_STORE", "true")

	app := fiber.New()
	store := storage.NewMemoryStore()
	cm := services.NewConnectionManager(store, transport.NewWebSocketTransport("ws://localhost:9/ws"))
	sessions := services.NewChatSessionService(store)
	engine := services.NewTrainingEngine(store, sessions, cm)
	router := services.NewMessageRouter(store, sessions, engine, cm, nil)

	SetupRoutes(app, store, cm, router, false)
	return app
}

func TestHealthEndpointResponds(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string `json:"status"`
		Services struct {
			Database bool `json:"database"`
			AI       bool `json:"ai"`
		} `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Services.Database)
	assert.False(t, body.Services.AI)
}

func TestAPIRoutesRequireKeyWhenConfigured(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "secret")
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/connections/", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/connections/", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
