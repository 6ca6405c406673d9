/**
 * Configuration for the document scan worker
 *
 * Loads configuration from environment variables. main loads a .env file first
 * when one is present.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Queue backends
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue and result cache)
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Queue configuration
	QueueBackend      string
	QueueName         string
	WorkerConcurrency int

	// Processing limits
	MaxFileSize       int64
	ProcessingTimeout time.Duration
	ResultCacheTTL    time.Duration

	// Tesseract configuration
	TesseractLanguage string
	TessdataPrefix    string

	// Extraction tunables file (yaml/json/toml), optional
	TunablesFile string

	// gRPC health endpoint
	HealthAddr string

	LogLevel string
	AppEnv   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QueueBackend:      strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueBackendRedis)),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "docscan:jobs"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 20971520),                                     // 20MB
		ProcessingTimeout: time.Duration(getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 120000)) * time.Millisecond, // 2 minutes
		ResultCacheTTL:    time.Duration(getEnvAsIntOrDefault("RESULT_CACHE_TTL", 86400)) * time.Second,         // 1 day
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		TunablesFile:      getEnvOrDefault("TUNABLES_FILE", ""),
		HealthAddr:        getEnvOrDefault("HEALTH_ADDR", ":9090"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		AppEnv:            getEnvOrDefault("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueBackend != QueueBackendRedis && c.QueueBackend != QueueBackendAsynq {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendRedis, QueueBackendAsynq, c.QueueBackend)
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 104857600 { // 1KB to 100MB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 100MB, got %d", c.MaxFileSize)
	}

	if c.ProcessingTimeout < time.Second {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %v", c.ProcessingTimeout)
	}

	if c.ResultCacheTTL < 0 {
		return fmt.Errorf("RESULT_CACHE_TTL must not be negative, got %v", c.ResultCacheTTL)
	}

	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
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

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
