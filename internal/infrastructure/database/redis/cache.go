package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Cache is a small JSON value cache on top of the shared client. The HTTP
// layer uses it to serve run status lookups without hitting Postgres for
// every poll.
type Cache struct {
	client *Client
	ttl    time.Duration
}

// NewCache builds a cache with the given default TTL.
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get unmarshals the cached value for key into dest. The second return
// value reports whether the key was present.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Raw().Get(ctx, c.client.Key("cache", key)).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSerialization, "cache value decode failed")
	}
	return true, nil
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache value encode failed")
	}
	if err := c.client.Raw().Set(ctx, c.client.Key("cache", key), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

// Invalidate drops the cached value for key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Raw().Del(ctx, c.client.Key("cache", key)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache invalidate failed")
	}
	return nil
}
