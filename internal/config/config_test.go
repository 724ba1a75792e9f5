package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY", "LOG_LEVEL", "MAX_CONCURRENT",
		"IMAGE_SIZE", "ENV_FILES", "REQUEST_TIMEOUT_SECONDS", "GEMINI_IMAGE_MODEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, "2K", cfg.ImageSize)
	assert.Equal(t, "gemini-3-pro-image-preview", cfg.GeminiImageModel)
	assert.Equal(t, []string{".env"}, cfg.EnvFiles)
	assert.Equal(t, 180*time.Second, cfg.RequestTimeout)
	assert.ErrorIs(t, cfg.RequireTelegram(), ErrMissingTelegramToken)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", " token ")
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("IMAGE_SIZE", "4k")
	t.Setenv("ENV_FILES", "a.env, ,b.env")
	t.Setenv("MEDIA_GROUP_DEBOUNCE_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, "4K", cfg.ImageSize)
	assert.Equal(t, []string{"a.env", "b.env"}, cfg.EnvFiles)
	assert.Equal(t, 250*time.Millisecond, cfg.MediaGroupDebounce)
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadRejectsUnknownImageSize(t *testing.T) {
	t.Setenv("IMAGE_SIZE", "8K")

	_, err := Load()
	assert.Error(t, err)
}
