package config

import (
	"os"
	"strconv"

	domaincfg "synapse/domain/config"
)

// Config holds runtime configuration loaded from the environment
type Config struct {
	Environment           string
	LogLevel              string
	SnapshotDBPath        string
	ConsolidationSchedule string
	AutoSnapshot          bool

	Engine *domaincfg.EngineConfig
}

// LoadFromEnv loads configuration from environment variables with
// sensible defaults for local use
func LoadFromEnv() *Config {
	return &Config{
		Environment:           getEnv("ENVIRONMENT", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		SnapshotDBPath:        getEnv("SNAPSHOT_DB_PATH", "synapse.db"),
		ConsolidationSchedule: getEnv("CONSOLIDATION_SCHEDULE", "0 * * * *"),
		AutoSnapshot:          getEnvBool("AUTO_SNAPSHOT", true),
		Engine:                domaincfg.DefaultEngineConfig(),
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	return c.Engine.Validate()
}

// IsProduction returns true in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
