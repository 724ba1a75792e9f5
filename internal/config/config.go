package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingTelegramToken = errors.New("TELEGRAM_BOT_TOKEN is required")

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel string
	Debug    bool

	PreferIPv4 bool
	WebAddr    string

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	MaxUpdates         int
	MaxAttachmentBytes int64
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration

	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiImageModel string
	ImageSize        string

	// EnvFiles are re-read when the user connects a credential.
	EnvFiles []string
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		WebAddr:            strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		MaxUpdates:         getEnvInt("MAX_UPDATES", 8),
		MaxAttachmentBytes: int64(getEnvInt("MAX_ATTACHMENT_BYTES", 10<<20)),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:      strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:   strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		GeminiImageModel:   strings.TrimSpace(getEnv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview")),
		ImageSize:          strings.ToUpper(strings.TrimSpace(getEnv("IMAGE_SIZE", "2K"))),
		EnvFiles:           getEnvList("ENV_FILES", []string{".env"}),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	switch cfg.ImageSize {
	case "1K", "2K", "4K":
	default:
		return Config{}, errors.New("IMAGE_SIZE must be one of 1K, 2K, 4K")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxUpdates < 1 {
		cfg.MaxUpdates = 1
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = 10 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

// RequireTelegram reports whether the bot front end can start.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return ErrMissingTelegramToken
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
