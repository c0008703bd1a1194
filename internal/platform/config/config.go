package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the process reads from its environment.
type Config struct {
	Addr string

	DatabaseURL string
	Redis       RedisConfig

	Lookup LookupConfig
	Verify VerifyConfig
	Events EventsConfig

	ExtractWorkers int
}

// RedisConfig tunes the optional payload cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LookupConfig points at the remote electoral roll search service.
type LookupConfig struct {
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
}

// VerifyConfig tunes verification runs.
type VerifyConfig struct {
	StateCode     string
	Threshold     float64
	MinDelay      time.Duration
	MaxConcurrent int
	CacheTTL      time.Duration
}

// EventsConfig configures the Kafka event stream. Empty Brokers disables it.
type EventsConfig struct {
	Brokers         []string
	RecordTopic     string
	ValidationTopic string
}

// FromEnv builds the full config from environment variables so main stays
// lean. Every value has a workable default except the remote lookup URL,
// which disables verification endpoints when unset.
func FromEnv() Config {
	return Config{
		Addr:        envString("ROLLSCAN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("ROLLSCAN_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("ROLLSCAN_REDIS_URL"),
			PoolSize:     envInt("ROLLSCAN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ROLLSCAN_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("ROLLSCAN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ROLLSCAN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ROLLSCAN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Lookup: LookupConfig{
			BaseURL:    os.Getenv("ROLLSCAN_LOOKUP_URL"),
			Headers:    envHeaders("ROLLSCAN_LOOKUP_HEADERS"),
			Timeout:    envDuration("ROLLSCAN_LOOKUP_TIMEOUT", 10*time.Second),
			MaxRetries: envInt("ROLLSCAN_LOOKUP_MAX_RETRIES", 3),
		},
		Verify: VerifyConfig{
			StateCode:     envString("ROLLSCAN_STATE_CODE", "S25"),
			Threshold:     envFloat("ROLLSCAN_MATCH_THRESHOLD", 0.95),
			MinDelay:      envDuration("ROLLSCAN_LOOKUP_MIN_DELAY", 500*time.Millisecond),
			MaxConcurrent: envInt("ROLLSCAN_VERIFY_CONCURRENCY", 4),
			CacheTTL:      envDuration("ROLLSCAN_PAYLOAD_CACHE_TTL", 24*time.Hour),
		},
		Events: EventsConfig{
			Brokers:         envList("ROLLSCAN_KAFKA_BROKERS"),
			RecordTopic:     envString("ROLLSCAN_KAFKA_RECORD_TOPIC", "rollscan.voters"),
			ValidationTopic: envString("ROLLSCAN_KAFKA_VALIDATION_TOPIC", "rollscan.validations"),
		},
		ExtractWorkers: envInt("ROLLSCAN_EXTRACT_WORKERS", 0),
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envHeaders parses "Name: value" pairs separated by semicolons, the form
// the remote service's required headers are usually shipped in.
func envHeaders(key string) map[string]string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			headers[name] = value
		}
	}
	return headers
}
