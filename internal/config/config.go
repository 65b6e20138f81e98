package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration for the scheduler process.
type Config struct {
	// Application settings
	AppEnv        string
	RunMigrations bool

	// Database settings
	DatabaseURL                string
	DatabaseMaxConnections     int
	DatabaseMaxIdleConnections int
	DatabaseConnectionLifetime time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// NATS settings
	NATSURL string

	// Data refresh settings
	MaxQueryRecords      int
	QueryTimeout         int
	MaxConcurrentQueries int

	// Pipeline tuning, per spec §5's configurable limits.
	ShiftDuration               time.Duration
	MergeGapTolerance           time.Duration
	MaintenanceMaxIterations    int
	CorrectionHorizon           time.Duration
	PipelineSoftDeadline        time.Duration
	BatchCheckpointSize         int
	SequenceAllocatorMaxRetries int
	SequenceAllocatorBaseBackoff time.Duration
	SequenceRateLimitPerSecond  float64
	SequenceRateLimitBurst      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
		DatabaseMaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		DatabaseConnectionLifetime: getEnvAsDuration("DATABASE_CONNECTION_LIFETIME", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		MaxQueryRecords:      getEnvAsInt("MAX_QUERY_RECORDS", 100000),
		QueryTimeout:         getEnvAsInt("QUERY_TIMEOUT", 300),
		MaxConcurrentQueries: getEnvAsInt("MAX_CONCURRENT_QUERIES", 5),

		RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),

		ShiftDuration:                getEnvAsDuration("SHIFT_DURATION", 8*time.Hour),
		MergeGapTolerance:            getEnvAsDuration("MERGE_GAP_TOLERANCE", 0),
		MaintenanceMaxIterations:     getEnvAsInt("MAINTENANCE_MAX_ITERATIONS", 8),
		CorrectionHorizon:            getEnvAsDuration("CORRECTION_HORIZON", 7*24*time.Hour),
		PipelineSoftDeadline:         getEnvAsDuration("PIPELINE_SOFT_DEADLINE", 300*time.Second),
		BatchCheckpointSize:          getEnvAsInt("BATCH_CHECKPOINT_SIZE", 100),
		SequenceAllocatorMaxRetries:  getEnvAsInt("SEQUENCE_ALLOCATOR_MAX_RETRIES", 3),
		SequenceAllocatorBaseBackoff: getEnvAsDuration("SEQUENCE_ALLOCATOR_BASE_BACKOFF", 100*time.Millisecond),
		SequenceRateLimitPerSecond:   getEnvAsFloat("SEQUENCE_RATE_LIMIT_PER_SECOND", 20),
		SequenceRateLimitBurst:       getEnvAsInt("SEQUENCE_RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
