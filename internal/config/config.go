package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port   string
	DBPath string // SQLite database file

	// TTS (Minimax-style) configuration
	TTSEndpoint string
	TTSGroupID  string
	TTSAPIKey   string
	TTSModel    string

	// Image search configuration
	ImageSearchKey string

	// Request queue tuning
	QueueMaxRetries  int
	QueueMinInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "3900"),
		DBPath: getEnv("DB_PATH", "solace.db"),

		TTSEndpoint: getEnv("TTS_ENDPOINT", ""),
		TTSGroupID:  getEnv("TTS_GROUP_ID", ""),
		TTSAPIKey:   getEnv("TTS_API_KEY", ""),
		TTSModel:    getEnv("TTS_MODEL", ""),

		ImageSearchKey: getEnv("IMAGE_SEARCH_KEY", ""),

		QueueMaxRetries:  getIntEnv("QUEUE_MAX_RETRIES", 3),
		QueueMinInterval: getDurationEnv("QUEUE_MIN_INTERVAL", 100*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
