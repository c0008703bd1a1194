package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "S25", cfg.Verify.StateCode)
	assert.InDelta(t, 0.95, cfg.Verify.Threshold, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.Verify.MinDelay)
	assert.Equal(t, 3, cfg.Lookup.MaxRetries)
	assert.Empty(t, cfg.Events.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ROLLSCAN_ADDR", ":9999")
	t.Setenv("ROLLSCAN_MATCH_THRESHOLD", "0.8")
	t.Setenv("ROLLSCAN_LOOKUP_MIN_DELAY", "2s")
	t.Setenv("ROLLSCAN_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("ROLLSCAN_LOOKUP_HEADERS", "X-Api-Key: secret; Referer: https://example.org")

	cfg := FromEnv()

	assert.Equal(t, ":9999", cfg.Addr)
	assert.InDelta(t, 0.8, cfg.Verify.Threshold, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Verify.MinDelay)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, map[string]string{
		"X-Api-Key": "secret",
		"Referer":   "https://example.org",
	}, cfg.Lookup.Headers)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ROLLSCAN_MATCH_THRESHOLD", "very high")
	t.Setenv("ROLLSCAN_LOOKUP_MAX_RETRIES", "many")

	cfg := FromEnv()
	assert.InDelta(t, 0.95, cfg.Verify.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Lookup.MaxRetries)
}
