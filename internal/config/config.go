package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Ingest      IngestConfig
	Seed        SeedConfig
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Port            int
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
// URL "memory" selects the in-process store.
type DatabaseConfig struct {
	URL          string
	MaxConns     int32
	QueryTimeout time.Duration
}

// RabbitMQConfig holds RabbitMQ connection and queue settings.
// An empty URL disables the upload consumer and event publishing.
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventsExchange   string
	EventsRoutingKey string
	DLQQueue         string
	PrefetchCount    int
}

// Enabled reports whether a broker is configured
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// IngestConfig holds the default layout of uploaded files
type IngestConfig struct {
	Delimiter rune
	SkipLines int
}

// SeedConfig controls baseline data
type SeedConfig struct {
	OnStart bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-reading-service"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			MaxUploadBytes:  int64(getEnvAsInt("HTTP_MAX_UPLOAD_BYTES", 10<<20)),
			ShutdownTimeout: time.Duration(getEnvAsInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxConns:     int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			QueryTimeout: time.Duration(getEnvAsInt("DB_QUERY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "meter-readings.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "meter-readings.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "upload.#"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-readings.events.exchange"),
			EventsRoutingKey: getEnv("RABBITMQ_EVENTS_ROUTING_KEY", "batch.processed"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "meter-readings.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Ingest: IngestConfig{
			SkipLines: getEnvAsInt("INGEST_SKIP_LINES", 1),
		},
		Seed: SeedConfig{
			OnStart: getEnvAsBool("SEED_ON_START", true),
		},
	}

	delimiter := getEnv("INGEST_DELIMITER", ",")
	r, size := utf8.DecodeRuneInString(delimiter)
	if size != len(delimiter) || r == utf8.RuneError {
		return nil, fmt.Errorf("INGEST_DELIMITER must be a single character, got %q", delimiter)
	}
	cfg.Ingest.Delimiter = r

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables (use %q for the in-memory store)", "memory")
	}
	if cfg.Ingest.SkipLines < 0 {
		return nil, fmt.Errorf("INGEST_SKIP_LINES cannot be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
