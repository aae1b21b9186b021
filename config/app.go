package config

import (
	"errors"
	"os"
	"strconv"
)

// AppConfig carries the process settings shared by the API server and
// the worker. Postgres and Redis keep their own Init functions.
type AppConfig struct {
	Port string

	TelegramToken         string
	TelegramWebhookSecret string

	GCSBucket string

	// VisionProvider selects the estimation backend: openai | vertex.
	VisionProvider string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string

	VertexProjectID string
	VertexLocation  string
	VertexModel     string

	// IDHashSecret keys the HMAC applied to chat/user ids before they
	// reach the throttle and analytics layers.
	IDHashSecret string

	EstimateWorkers int
	InlineWorkers   int
}

var App *AppConfig

func LoadApp() error {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return errors.New("GCS_BUCKET environment variable is not set")
	}

	App = &AppConfig{
		Port: envOr("PORT", "8080"),

		TelegramToken:         token,
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),

		GCSBucket: bucket,

		VisionProvider: envOr("VISION_PROVIDER", "openai"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:    envOr("OPENAI_MODEL", "gpt-4o-mini"),

		VertexProjectID: os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:  envOr("VERTEX_LOCATION", "us-central1"),
		VertexModel:     envOr("VERTEX_MODEL", "gemini-1.5-flash"),

		IDHashSecret: os.Getenv("TELEGRAM_ID_HASH_SECRET"),

		EstimateWorkers: envInt("ESTIMATE_WORKERS", 3),
		InlineWorkers:   envInt("INLINE_WORKERS", 3),
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
