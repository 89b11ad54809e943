package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/cache"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/handler"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/media"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/storage"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/vision"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/config"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/receipt"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/rules"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/worker"
)

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if cfg.OpenAIKey == "" {
		slog.Error("❌ OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	ruleSet := rules.Default()
	if cfg.RulesFile != "" {
		loaded, err := rules.Load(cfg.RulesFile)
		if err != nil {
			slog.Error("❌ Could not load rules", "error", err, "path", cfg.RulesFile)
			os.Exit(1)
		}
		ruleSet = loaded
	}
	slog.Info("Rules loaded", "beneficiaries", len(ruleSet.Beneficiaries), "services", len(ruleSet.Services))

	// 3. Connect to Database
	dbPool, err := storage.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("❌ Database connection failed", "error", err)
		os.Exit(1)
	}
	if err := storage.Migrate(context.Background(), dbPool); err != nil {
		slog.Error("❌ Database migration failed", "error", err)
		os.Exit(1)
	}

	// 4. Redis lock (optional)
	var locker receipt.Locker = cache.NopLocker{}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Warn("Redis unavailable, duplicates will be caught by the database only", "error", err)
		} else {
			defer rdb.Close()
			locker = cache.NewRedisLocker(rdb)
		}
	}

	// 5. Setup Repos & Handlers
	receiptRepo := storage.NewReceiptRepository(dbPool)
	contactRepo := storage.NewContactRepository(dbPool)
	jobRepo := storage.NewJobRepository(dbPool)
	idempotencyRepo := storage.NewIdempotencyRepository(dbPool)

	service := &receipt.Service{
		Vision:        vision.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.VisionModel, cfg.LLMTimeout),
		Images:        media.NewFetcher(cfg.ImageMaxBytes, 30*time.Second),
		Receipts:      receiptRepo,
		Contacts:      contactRepo,
		Locker:        locker,
		Outbox:        jobRepo,
		Rules:         ruleSet,
		WebhookURL:    cfg.WebhookURL,
		DefaultLineID: cfg.BotLineID,
		Location:      cfg.Location,
	}

	receiptHandler := &handler.ReceiptHandler{Service: service}
	adminHandler := &handler.AdminHandler{Receipts: receiptRepo, Contacts: contactRepo}
	healthHandler := &handler.HealthHandler{DB: dbPool}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ReadTimeout:           10 * time.Second,
		// Two model calls plus the image download
		WriteTimeout: 3*cfg.LLMTimeout + 30*time.Second,
	})

	app.Use(cors.New())
	app.Use(middleware.RequestLogger())

	// 7. Routes
	registerRoutes(app, routes{
		Health:         healthHandler.Check,
		Process:        receiptHandler.Process,
		Idempotency:    middleware.Idempotency(idempotencyRepo),
		ListReceipts:   adminHandler.ListReceipts,
		ExportReceipts: adminHandler.ExportReceipts,
		GetReceipt:     adminHandler.GetReceipt,
		GetContact:     adminHandler.GetContact,
		AdminKeyHash:   cfg.AdminKeyHash,
	})

	// 8. Start Worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := worker.NewWebhookWorker(jobRepo, cfg.WebhookSecret).Start(workerCtx)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port, "model", cfg.VisionModel)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("🛑 Shutting down server...")

	// Finish active requests before the pool goes away
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	stopWorker()
	// The job in flight must be recorded before the pool goes away
	<-workerDone

	dbPool.Close()
	slog.Info("✅ Database connection closed")

	slog.Info("👋 Server exited successfully")
}
