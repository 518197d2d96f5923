package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("IDEMPOTENCY_TTL", "")

	cfg := Load()
	require.Equal(t, "NGN", cfg.DefaultCurrency)
	require.Equal(t, 300*time.Second, cfg.IdempotencyTTL)
	require.Equal(t, 5*time.Minute, cfg.WebhookMaxAge)
	require.Equal(t, 10, cfg.WebhookRateLimit)
	require.Equal(t, time.Minute, cfg.WebhookRateWindow)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WEBHOOK_RATE_LIMIT", "3")
	t.Setenv("WEBHOOK_MAX_AGE", "90s")
	t.Setenv("PROCESSOR_APPROVAL_LIMIT", "250.50")
	t.Setenv("SETTLEMENT_WORKERS", "not-a-number")

	cfg := Load()
	require.Equal(t, 3, cfg.WebhookRateLimit)
	require.Equal(t, 90*time.Second, cfg.WebhookMaxAge)
	require.Equal(t, "250.5", cfg.ProcessorLimit.String())
	require.Equal(t, 8, cfg.SettlementWorkers)
}

func TestValidate_MissingWebhookSecretFailsFast(t *testing.T) {
	cfg := Config{
		RepoBackend:       "memory",
		RedisAddr:         "localhost:6379",
		JWTSecret:         "jwt",
		WebhookRateLimit:  10,
		WebhookRateWindow: time.Minute,
		WebhookMaxAge:     time.Minute,
		SettlementWorkers: 1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WEBHOOK_SECRET")

	cfg.WebhookSecret = "whsec"
	require.NoError(t, cfg.Validate())

	cfg.Env = "prod"
	require.ErrorContains(t, cfg.Validate(), "memory backend")
}

func TestValidate_WebhookMaxAgeBounded(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("JWT_SECRET", "jwt")

	for _, v := range []string{"24h", "5m1s", "0s", "-1m"} {
		t.Setenv("WEBHOOK_MAX_AGE", v)
		require.ErrorContains(t, Load().Validate(), "WEBHOOK_MAX_AGE", v)
	}
	for _, v := range []string{"5m", "30s"} {
		t.Setenv("WEBHOOK_MAX_AGE", v)
		require.NoError(t, Load().Validate(), v)
	}
}
