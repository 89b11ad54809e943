package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

const IdempotencyHeader = "Idempotency-Key"

// ResponseStore keeps the first response sent for each idempotency key
type ResponseStore interface {
	Get(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Save(ctx context.Context, key string, status int, body []byte) error
}

// Idempotency replays the stored response when the bot retries a delivery.
// Only responses below 500 are stored so failed attempts can be retried.
func Idempotency(store ResponseStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Key from Header
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}

		// 2. Check if key exists
		status, body, found, err := store.Get(c.Context(), key)
		if err != nil {
			slog.Warn("Idempotency lookup failed, processing request", "error", err, "key", key)
		} else if found {
			slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		// 3. Run the Handler
		if err := c.Next(); err != nil {
			return err
		}

		// 4. Save the Result
		resStatus := c.Response().StatusCode()
		if resStatus >= fiber.StatusInternalServerError {
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...)

		if err := store.Save(c.Context(), key, resStatus, resBody); err != nil {
			slog.Error("❌ Failed to save Idempotency Key", "error", err, "key", key)
		} else {
			slog.Info("💾 Idempotency Key Saved", "key", key)
		}
		return nil
	}
}
