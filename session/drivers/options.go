package drivers

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Option is a functional option for configuring a cache driver.
type Option func(*config)

// config holds configuration for cache drivers.
type config struct {
	redisClient redis.UniversalClient
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

// WithRedisClient sets the Redis client for the Redis driver.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(c *config) {
		c.redisClient = client
	}
}

// WithTTL sets the default TTL used when a write passes a non-positive TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithKeyPrefix overrides the key prefix. Defaults to session.KeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.keyPrefix = prefix
	}
}

// WithClock sets the time source of the in-memory driver.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}
