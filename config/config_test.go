package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_test")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 2.0, cfg.Retry.Factor)
	assert.Equal(t, 3, cfg.Queue.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, "master", cfg.Contentful.Environment)
	assert.False(t, cfg.Contentful.Enabled())
	assert.Empty(t, cfg.Observ.JaegerEndpoint, "trace export is off unless configured")
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_test")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "2")
	t.Setenv("REMOTE_BACKOFF_FACTOR", "1.5")

	cfg := Load()

	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, uint32(2), cfg.Breaker.FailureThreshold)
	assert.Equal(t, 1.5, cfg.Retry.Factor)
}

func TestValidate(t *testing.T) {
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")
	t.Setenv("CACHE_BACKEND", "memcached")

	cfg := Load()
	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOPIFY_ACCESS_TOKEN")
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}

func TestValidateRejectsNonPositiveBreakerThreshold(t *testing.T) {
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_test")

	for _, v := range []string{"0", "-1"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("BREAKER_FAILURE_THRESHOLD", v)

			cfg := Load()

			assert.Equal(t, uint32(0), cfg.Breaker.FailureThreshold)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "BREAKER_FAILURE_THRESHOLD")
		})
	}
}
