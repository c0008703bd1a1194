// Package cache stores remote lookup payloads in Redis so re-runs against the
// same constituency do not repeat every remote call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollscan/internal/domain"
)

// PayloadCache is a TTL cache of raw lookup payloads keyed by record identity.
// A nil *PayloadCache disables caching.
type PayloadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *PayloadCache {
	if client == nil {
		return nil
	}
	return &PayloadCache{client: client, ttl: ttl}
}

// Get returns the cached payload for a record key, reporting whether it was
// present.
func (c *PayloadCache) Get(ctx context.Context, key domain.RecordKey) (json.RawMessage, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached payload: %w", err)
	}
	return json.RawMessage(raw), true, nil
}

func (c *PayloadCache) Set(ctx context.Context, key domain.RecordKey, payload json.RawMessage) error {
	if c == nil || len(payload) == 0 {
		return nil
	}
	if err := c.client.Set(ctx, cacheKey(key), []byte(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached payload: %w", err)
	}
	return nil
}

func cacheKey(key domain.RecordKey) string {
	return fmt.Sprintf("rollscan:lookup:%d:%d:%s:%s", key.ACNumber, key.PartNumber, key.SerialNo, key.EpicID)
}
