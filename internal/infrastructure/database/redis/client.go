// Package redis provides the Redis client used by the pipeline for the
// structure exclusion set and short-lived caching.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Client wraps a go-redis client with connection lifecycle management and
// key prefixing so that several deployments can share one Redis instance.
type Client struct {
	rdb       *redis.Client
	keyPrefix string
	logger    logging.Logger
	closeOnce sync.Once
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger logging.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis ping failed")
	}

	logger.Info("connected to redis",
		logging.String("addr", cfg.Addr),
		logging.Int("db", cfg.DB),
		logging.String("key_prefix", cfg.KeyPrefix),
	)

	return &Client{
		rdb:       rdb,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

// Raw exposes the underlying go-redis client for adapters in this package.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Key returns the given key with the configured prefix applied.
func (c *Client) Key(parts ...string) string {
	key := c.keyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// HealthCheck pings Redis and reports pool statistics.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis health check failed")
	}
	stats := c.rdb.PoolStats()
	if stats.Timeouts > 0 {
		c.logger.Warn("redis pool reported timeouts",
			logging.Int("timeouts", int(stats.Timeouts)),
			logging.Int("total_conns", int(stats.TotalConns)),
		)
	}
	return nil
}

// Close releases the connection pool. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.rdb.Close()
		if err != nil {
			err = fmt.Errorf("closing redis client: %w", err)
		}
	})
	return err
}
