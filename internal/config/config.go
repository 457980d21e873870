package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPListenAddr string

	LineChannelSecret string
	LineChannelToken  string

	SpoonacularAPIKey  string
	SpoonacularBaseURL string
	SpoonacularTimeout time.Duration

	OpenAIAPIKey string
	ChatModel    string
	VisionModel  string

	CacheDBPath      string
	MetricsNamespace string
	EventTimeout     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
}

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             getenvDefault("APP_ENV", "development"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:     getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		LineChannelSecret:  trimmedEnv("LINE_CHANNEL_SECRET"),
		LineChannelToken:   trimmedEnv("LINE_CHANNEL_ACCESS_TOKEN"),
		SpoonacularAPIKey:  trimmedEnv("SPOONACULAR_API_KEY"),
		SpoonacularBaseURL: getenvDefault("SPOONACULAR_BASE_URL", "https://api.spoonacular.com"),
		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		ChatModel:          getenvDefault("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		VisionModel:        getenvDefault("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		CacheDBPath:        getenvDefault("CACHE_DB_PATH", "data/nutrition-cache.db"),
		MetricsNamespace:   getenvDefault("METRICS_NAMESPACE", "diet_bot"),
		RedisAddr:          trimmedEnv("REDIS_ADDR"),
		RedisPassword:      trimmedEnv("REDIS_PASSWORD"),
	}

	var err error
	spoonTimeoutStr := getenvDefault("SPOONACULAR_TIMEOUT", "10s")
	if cfg.SpoonacularTimeout, err = time.ParseDuration(spoonTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid SPOONACULAR_TIMEOUT duration: %w", err)
	}

	eventTimeoutStr := getenvDefault("EVENT_TIMEOUT", "45s")
	if cfg.EventTimeout, err = time.ParseDuration(eventTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIMEOUT duration: %w", err)
	}

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}
	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")

	if cfg.LineChannelSecret == "" || cfg.LineChannelToken == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_SECRET and LINE_CHANNEL_ACCESS_TOKEN are required")
	}
	if cfg.SpoonacularAPIKey == "" {
		return nil, fmt.Errorf("SPOONACULAR_API_KEY is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	cfg.SpoonacularBaseURL = strings.TrimRight(cfg.SpoonacularBaseURL, "/")

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
