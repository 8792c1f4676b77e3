package middleware

import (
	"crypto/subtle"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
)

// RequireAPIKey gates mutating API routes behind the ADMIN_API_KEY shared
// secret. When the key is not configured (local development), requests pass
// through.
func RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := os.Getenv("ADMIN_API_KEY")
		if expected == "" {
			// Log once-ish so a misconfigured production deploy is visible
			fmt.Println("⚠️  ADMIN_API_KEY not set - API authentication disabled")
			return c.Next()
		}

		provided := c.Get("X-API-Key")
		if provided == "" {
			return c.Status(401).JSON(fiber.Map{
				"error": "Missing API key",
			})
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(401).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}
