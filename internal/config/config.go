// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the composition root needs.
type Config struct {
	DataDir   string
	Port      string
	LogLevel  string
	LogPretty bool

	TickerServiceURL string

	FinnhubRateLimitPerMinute int

	WatchlistUserID string
	BeatTimezone    string
}

// Load reads .env (if present) then the environment, applying defaults
// that match the platform's DataDir/Port/LogLevel conventions.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DataDir:                   envOr("DATA_DIR", "./data"),
		Port:                      envOr("PORT", "8080"),
		LogLevel:                  envOr("LOG_LEVEL", "info"),
		LogPretty:                 envBoolOr("LOG_PRETTY", true),
		TickerServiceURL:          envOr("TICKER_SERVICE_URL", ""),
		FinnhubRateLimitPerMinute: envIntOr("FINNHUB_RATE_LIMIT_PER_MINUTE", 59),
		WatchlistUserID:           envOr("WATCHLIST_USER_ID", "default"),
		BeatTimezone:              envOr("BEAT_TIMEZONE", "UTC"),
	}

	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving data dir: %w", err)
	}
	cfg.DataDir = abs

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
