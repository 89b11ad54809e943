package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LLM_TIMEOUT", "not-a-duration")

	cfg := LoadConfig()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "gpt-4o", cfg.VisionModel)
	require.Equal(t, 60*time.Second, cfg.LLMTimeout, "invalid values fall back to the default")
	require.Equal(t, 10<<20, cfg.ImageMaxBytes)
	require.Equal(t, "America/Guayaquil", cfg.Location.String())
}

func TestLoadConfigTimeZone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "America/Bogota")
	require.Equal(t, "America/Bogota", LoadConfig().Location.String())

	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	require.Equal(t, "America/Guayaquil", LoadConfig().Location.String(), "invalid zones fall back to the default")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("VISION_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("IMAGE_MAX_BYTES", "1024")
	t.Setenv("WEBHOOK_URL", "https://example.com/hook")

	cfg := LoadConfig()

	require.Equal(t, "gpt-4o-mini", cfg.VisionModel)
	require.Equal(t, 15*time.Second, cfg.LLMTimeout)
	require.Equal(t, 1024, cfg.ImageMaxBytes)
	require.Equal(t, "https://example.com/hook", cfg.WebhookURL)
}
