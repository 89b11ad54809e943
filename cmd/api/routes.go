package main

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/middleware"
)

type routes struct {
	Health      fiber.Handler
	Process     fiber.Handler
	Idempotency fiber.Handler

	ListReceipts   fiber.Handler
	ExportReceipts fiber.Handler
	GetReceipt     fiber.Handler
	GetContact     fiber.Handler

	// Admin routes are only mounted when set
	AdminKeyHash string
}

// registerRoutes mounts the API. The admin guard is attached per route so
// paths nobody serves still answer 404.
func registerRoutes(app *fiber.App, r routes) {
	app.Get("/healthz", r.Health)
	app.Post("/procesar", r.Idempotency, r.Process)

	api := app.Group("/v1")
	api.Post("/receipts", r.Idempotency, r.Process)

	if r.AdminKeyHash == "" {
		slog.Warn("ADMIN_API_KEY_HASH is empty, admin routes are disabled")
		return
	}
	protected := middleware.Protected(r.AdminKeyHash)
	api.Get("/receipts", protected, r.ListReceipts)
	api.Get("/receipts/export", protected, r.ExportReceipts)
	api.Get("/receipts/:document", protected, r.GetReceipt)
	api.Get("/contacts/:phone", protected, r.GetContact)
}
