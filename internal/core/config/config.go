package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	Env         string

	// Vision model
	OpenAIKey     string
	OpenAIBaseURL string
	VisionModel   string
	LLMTimeout    time.Duration

	ImageMaxBytes int
	RulesFile     string
	BotLineID     string
	// Zone of the timestamps the bot sends without an offset
	Location      *time.Location

	// Notifications
	WebhookURL    string
	WebhookSecret string

	// Admin routes are disabled while this is empty
	AdminKeyHash string
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// Try loading .env file (it might not exist in Production, which is fine)
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:          getEnv("PORT", "3000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		Env:           getEnv("ENV", "development"),
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		VisionModel:   getEnv("VISION_MODEL", "gpt-4o"),
		LLMTimeout:    getDuration("LLM_TIMEOUT", 60*time.Second),
		ImageMaxBytes: getInt("IMAGE_MAX_BYTES", 10<<20),
		RulesFile:     getEnv("RULES_FILE", ""),
		BotLineID:     getEnv("BOT_LINE_ID", "principal"),
		Location:      getLocation("APP_TIMEZONE", "America/Guayaquil"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		AdminKeyHash:  getEnv("ADMIN_API_KEY_HASH", ""),
	}
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in env, using default", "key", key, "value", value)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in env, using default", "key", key, "value", value)
		return fallback
	}
	return d
}

func getLocation(key, fallback string) *time.Location {
	name := getEnv(key, fallback)
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown time zone in env, using default", "key", key, "value", name)
		loc, _ = time.LoadLocation(fallback)
	}
	return loc
}
