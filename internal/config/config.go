// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the CLI and services need at startup.
type Config struct {
	// Google OAuth application credentials.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// DBPath is the sqlite database location. Empty means in-memory.
	DBPath string

	// DefaultFrom is used when a user has no stored provider email.
	DefaultFrom string

	// Bulk send pacing.
	BulkBatchSize int
	BulkDelayUnit time.Duration

	LogLevel  string
	LogFormat string

	MetricsAddr string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		GoogleClientID:     getEnvString("LEADMAIL_GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvString("LEADMAIL_GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnvString("LEADMAIL_GOOGLE_REDIRECT_URL", "urn:ietf:wg:oauth:2.0:oob"),
		DBPath:             getEnvString("LEADMAIL_DB_PATH", "leadmail.db"),
		DefaultFrom:        getEnvString("LEADMAIL_DEFAULT_FROM", ""),
		BulkBatchSize:      getEnvInt("LEADMAIL_BULK_BATCH_SIZE", 10),
		BulkDelayUnit:      getEnvDuration("LEADMAIL_BULK_DELAY_UNIT", time.Second),
		LogLevel:           getEnvString("LEADMAIL_LOG_LEVEL", "info"),
		LogFormat:          getEnvString("LEADMAIL_LOG_FORMAT", "text"),
		MetricsAddr:        getEnvString("LEADMAIL_METRICS_ADDR", ""),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
