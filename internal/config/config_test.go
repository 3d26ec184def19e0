package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("BACKEND_BASE_URL", "http://backend")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.UsageStore)
	assert.Equal(t, 3, cfg.UsageRetentionMonths)
	assert.Equal(t, 30*time.Second, cfg.EntitlementFreshness())
	assert.Equal(t, 2*time.Second, cfg.PaymentPollInterval())
	assert.Equal(t, 60, cfg.PaymentPollMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout())
	assert.Equal(t, time.Hour, cfg.UsageSweepInterval())
	assert.Equal(t, "payment_watch_queue", cfg.PaymentWatchQueueName)
	assert.NoError(t, cfg.RequireGateway())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("USAGE_STORE", "redis")
	t.Setenv("ENTITLEMENT_FRESHNESS_SEC", "5")
	t.Setenv("PAYMENT_WATCH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "redis", cfg.UsageStore)
	assert.Equal(t, 5*time.Second, cfg.EntitlementFreshness())
	assert.True(t, cfg.PaymentWatchEnabled)
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT_SEC", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestRequireGateway(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireGateway(), "JWT_SECRET")
	cfg.JWTSecret = "s"
	assert.ErrorContains(t, cfg.RequireGateway(), "USAGE_RETENTION_MONTHS")
	cfg.UsageRetentionMonths = 3
	assert.ErrorContains(t, cfg.RequireGateway(), "USAGE_SWEEP_INTERVAL_MIN")
	cfg.UsageSweepIntervalMin = 60
	assert.ErrorContains(t, cfg.RequireGateway(), "BACKEND_BASE_URL")
	assert.ErrorContains(t, cfg.RequireBackend(), "BACKEND_BASE_URL")
}

func TestRequireUsageRejectsZeroInterval(t *testing.T) {
	t.Setenv("USAGE_SWEEP_INTERVAL_MIN", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.RequireUsage(), "USAGE_SWEEP_INTERVAL_MIN")

	t.Setenv("USAGE_SWEEP_INTERVAL_MIN", "15")
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireUsage())
}
