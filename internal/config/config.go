package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	Port int
	Host string

	// SecretKey seals stored indexer and download client credentials
	SecretKey string

	// Logging
	LogFile string

	// Environment
	Environment string

	// CORSOrigin is the allowed cross-origin caller; empty echoes the request origin
	CORSOrigin string

	// Orchestration
	PollInterval time.Duration

	// Indexer pacing
	IndexerGlobalInterval     time.Duration
	IndexerPerIndexerInterval time.Duration
	SearchInterval            time.Duration
	IndexerFailureBackoff     time.Duration
	IndexerTimeout            time.Duration

	// Download clients
	ClientTimeout time.Duration

	// Notifications
	NotifyWebhookURL string

	// Import
	FFprobePath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:               getEnv("DATABASE_URL", "postgres://localhost:5432/nimbus?sslmode=disable"),
		Port:                      getEnvAsInt("PORT", 8080),
		Host:                      getEnv("HOST", "0.0.0.0"),
		SecretKey:                 getEnv("SECRET_KEY", ""),
		LogFile:                   getEnv("LOG_FILE", ""),
		Environment:               getEnv("ENVIRONMENT", "development"),
		CORSOrigin:                getEnv("CORS_ORIGIN", ""),
		PollInterval:              getEnvAsDuration("POLL_INTERVAL", 15*time.Second),
		IndexerGlobalInterval:     getEnvAsDuration("INDEXER_GLOBAL_INTERVAL", time.Second),
		IndexerPerIndexerInterval: getEnvAsDuration("INDEXER_PER_INDEXER_INTERVAL", 3*time.Second),
		SearchInterval:            getEnvAsDuration("SEARCH_INTERVAL", 2*time.Second),
		IndexerFailureBackoff:     getEnvAsDuration("INDEXER_FAILURE_BACKOFF", 0),
		IndexerTimeout:            getEnvAsDuration("INDEXER_TIMEOUT", 30*time.Second),
		ClientTimeout:             getEnvAsDuration("CLIENT_TIMEOUT", 15*time.Second),
		NotifyWebhookURL:          getEnv("NOTIFY_WEBHOOK_URL", ""),
		FFprobePath:               getEnv("FFPROBE_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}

	if len(c.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters long")
	}

	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}

	if c.IndexerTimeout < 10*time.Second || c.IndexerTimeout > 30*time.Second {
		return fmt.Errorf("INDEXER_TIMEOUT must be between 10s and 30s")
	}

	if c.ClientTimeout < 10*time.Second || c.ClientTimeout > 30*time.Second {
		return fmt.Errorf("CLIENT_TIMEOUT must be between 10s and 30s")
	}

	if c.IndexerGlobalInterval < 0 || c.IndexerPerIndexerInterval < 0 || c.SearchInterval < 0 || c.IndexerFailureBackoff < 0 {
		return fmt.Errorf("indexer intervals cannot be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration accepts Go duration strings ("15s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}

	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
