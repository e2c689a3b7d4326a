package config

import (
	"os"
	"strconv"
	"time"
)

// Application settings
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Extractor ExtractorConfig
	API       APIConfig
	Storage   StorageConfig
}

// Server settings
type ServerConfig struct {
	Port string
}

// Extraction engine settings
type ExtractorConfig struct {
	TempDir            string
	PageSize           int
	BackoffAttempts    int
	BackoffBase        time.Duration
	RequestTimeout     time.Duration
	RateLimitPerSecond int
}

// Remote reporting API settings
type APIConfig struct {
	BaseURL           string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
}

// Local persistence settings
type StorageConfig struct {
	AccountsDSN string
	SinkDSN     string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Extractor: ExtractorConfig{
			TempDir:            getEnv("TEMP_DIR", os.TempDir()),
			PageSize:           getIntEnv("PAGE_SIZE", 5000),
			BackoffAttempts:    getIntEnv("BACKOFF_ATTEMPTS", 7),
			BackoffBase:        getDurationEnv("BACKOFF_BASE", "1s"),
			RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", "60s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
		},
		API: APIConfig{
			BaseURL:           getEnv("REPORTING_API_URL", "https://www.googleapis.com/analytics/v3"),
			OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", "https://accounts.google.com/o/oauth2/token"),
			OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		},
		Storage: StorageConfig{
			AccountsDSN: getEnv("ACCOUNTS_DB", "accounts.db"),
			SinkDSN:     getEnv("SINK_DB", "storage.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
