// Package config provides configuration management for MachineHub.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment   Environment
	SessionMaxAge int // session lifetime in seconds (default: 86400)

	// WebhookSecret authenticates push telemetry. Empty disables the check.
	WebhookSecret string

	// Poller settings. PollInterval 0 disables pulling entirely.
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Retention settings for the snapshot cleanup job.
	RetentionKeepPerMachine int
	RetentionMaxAgeDays     int // 0 disables age-based cleanup

	// RedisURL, when set, backs the rate limiter with Redis instead of
	// in-process memory.
	RedisURL string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", 86400)
	if sessionMaxAge < 0 {
		sessionMaxAge = 86400
	}

	pollInterval := getEnvInt("POLL_INTERVAL_SECONDS", 30)
	if pollInterval < 0 {
		pollInterval = 0
	}

	pollTimeout := getEnvInt("POLL_TIMEOUT_SECONDS", 10)
	if pollTimeout <= 0 {
		pollTimeout = 10
	}

	keepPerMachine := getEnvInt("RETENTION_KEEP_PER_MACHINE", 10000)
	if keepPerMachine <= 0 {
		keepPerMachine = 10000
	}

	maxAgeDays := getEnvInt("RETENTION_MAX_AGE_DAYS", 0)
	if maxAgeDays < 0 {
		maxAgeDays = 0
	}

	return ServerConfig{
		Environment:             env,
		SessionMaxAge:           sessionMaxAge,
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		PollInterval:            time.Duration(pollInterval) * time.Second,
		PollTimeout:             time.Duration(pollTimeout) * time.Second,
		RetentionKeepPerMachine: keepPerMachine,
		RetentionMaxAgeDays:     maxAgeDays,
		RedisURL:                os.Getenv("REDIS_URL"),
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
