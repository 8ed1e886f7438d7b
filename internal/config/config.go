// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      int
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Scoring
	ModelPath string // empty uses the embedded model

	// Velocity tracking
	VelocityWindow        time.Duration
	VelocitySaturation    int
	VelocitySweepInterval time.Duration

	// API abuse protection
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// AdminAPIKey guards the audit and list routes; empty disables them
	AdminAPIKey string

	// Shared state (optional; in-process when empty)
	RedisURL    string
	DatabaseURL string

	// Audit and batch
	AuditCapacity int
	BatchMax      int

	// Alerts
	AlertWebhookURLs []string

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultVelocityWindow        = 10 * time.Minute
	DefaultVelocitySaturation    = 10
	DefaultVelocitySweepInterval = time.Minute
	DefaultRateLimitRequests     = 100
	DefaultRateLimitWindow       = 60 * time.Second
	DefaultAuditCapacity         = 1000
	DefaultBatchMax              = 1000
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnvInt("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:             getEnv("LOG_FORMAT", DefaultLogFormat),
		ModelPath:             getEnv("MODEL_PATH", ""),
		VelocityWindow:        getEnvDuration("VELOCITY_WINDOW", DefaultVelocityWindow),
		VelocitySaturation:    getEnvInt("VELOCITY_SATURATION", DefaultVelocitySaturation),
		VelocitySweepInterval: getEnvDuration("VELOCITY_SWEEP_INTERVAL", DefaultVelocitySweepInterval),
		RateLimitRequests:     getEnvInt("RATE_LIMIT_REQUESTS", DefaultRateLimitRequests),
		RateLimitWindow:       getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
		AdminAPIKey:           getEnv("ADMIN_API_KEY", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		AuditCapacity:         getEnvInt("AUDIT_CAPACITY", DefaultAuditCapacity),
		BatchMax:              getEnvInt("BATCH_MAX", DefaultBatchMax),
		AlertWebhookURLs:      getEnvList("ALERT_WEBHOOK_URLS"),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.VelocityWindow <= 0 {
		errs = append(errs, errors.New("VELOCITY_WINDOW must be positive"))
	}
	if c.VelocitySaturation <= 0 {
		errs = append(errs, errors.New("VELOCITY_SATURATION must be positive"))
	}
	if c.VelocitySweepInterval <= 0 {
		errs = append(errs, errors.New("VELOCITY_SWEEP_INTERVAL must be positive"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.AuditCapacity <= 0 {
		errs = append(errs, errors.New("AUDIT_CAPACITY must be positive"))
	}
	if c.BatchMax <= 0 {
		errs = append(errs, errors.New("BATCH_MAX must be positive"))
	}
	if c.IsProduction() && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required in production"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
