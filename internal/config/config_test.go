package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "LOG_LEVEL", "RATE_LIMIT_REQUESTS", "VELOCITY_WINDOW", "REDIS_URL", "ALERT_WEBHOOK_URLS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Minute, cfg.VelocityWindow)
	assert.Equal(t, 10, cfg.VelocitySaturation)
	assert.Equal(t, 1000, cfg.AuditCapacity)
	assert.Equal(t, 1000, cfg.BatchMax)
	assert.Empty(t, cfg.AlertWebhookURLs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VELOCITY_WINDOW", "5m")
	t.Setenv("RATE_LIMIT_REQUESTS", "20")
	t.Setenv("ALERT_WEBHOOK_URLS", " https://a.example/hook , ,https://b.example/hook")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.VelocityWindow)
	assert.Equal(t, 20, cfg.RateLimitRequests)
	assert.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, cfg.AlertWebhookURLs)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRateLimitWindow, cfg.RateLimitWindow)
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("REDIS_URL", "")
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	bad.BatchMax = -1
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "BATCH_MAX")

	noSweep := *cfg
	noSweep.VelocitySweepInterval = 0
	assert.ErrorContains(t, noSweep.Validate(), "VELOCITY_SWEEP_INTERVAL")

	prod := *cfg
	prod.Env = "production"
	assert.ErrorContains(t, prod.Validate(), "REDIS_URL")
	prod.RedisURL = "redis://localhost:6379/0"
	assert.NoError(t, prod.Validate())
}

func TestLoad_RejectsZeroSweepInterval(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("VELOCITY_SWEEP_INTERVAL", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "VELOCITY_SWEEP_INTERVAL")
}

func TestLoad_AdminAPIKey(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AdminAPIKey)

	t.Setenv("ADMIN_API_KEY", "s3cret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.AdminAPIKey)
}
