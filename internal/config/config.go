package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	LogLevel       string

	DatabaseURL string
	RedisURL    string

	MeiliSearchHost string
	MeiliMasterKey  string

	JWTSecret string

	RateLimitGlobal time.Duration
	RateLimitThread time.Duration
	RateLimitReply  time.Duration

	TrendingWindow   time.Duration
	ViewSyncSchedule string
	ViewDedupWindow  time.Duration
	MaxPageSize      int
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		ViewSyncSchedule: getEnv("VIEW_SYNC_SCHEDULE", "@every 1m"),
	}

	var err error
	cfg.RateLimitGlobal, err = parseDuration(getEnv("RATE_LIMIT_GLOBAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_GLOBAL: %w", err)
	}
	cfg.RateLimitThread, err = parseDuration(getEnv("RATE_LIMIT_THREAD", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_THREAD: %w", err)
	}
	cfg.RateLimitReply, err = parseDuration(getEnv("RATE_LIMIT_REPLY", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REPLY: %w", err)
	}
	cfg.TrendingWindow, err = parseDuration(getEnv("TRENDING_WINDOW", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRENDING_WINDOW: %w", err)
	}
	cfg.ViewDedupWindow, err = parseDuration(getEnv("VIEW_DEDUP_WINDOW", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid VIEW_DEDUP_WINDOW: %w", err)
	}
	cfg.MaxPageSize, err = strconv.Atoi(getEnv("MAX_PAGE_SIZE", "50"))
	if err != nil || cfg.MaxPageSize < 1 {
		return nil, fmt.Errorf("invalid MAX_PAGE_SIZE: %q", os.Getenv("MAX_PAGE_SIZE"))
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
