package drivers

import (
	"time"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
)

// StoreType represents the type of cache store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// NewCache creates a session cache of the given type.
// For Redis, requires WithRedisClient option.
func NewCache(storeType StoreType, opts ...Option) (session.SwapCache, error) {
	cfg := &config{
		ttl:       session.DefaultTTL,
		keyPrefix: session.KeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = session.DefaultTTL
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryCache(cfg), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, convstore.ErrInvalidConfig
		}
		return newRedisCache(cfg), nil

	default:
		return nil, convstore.ErrInvalidStoreType
	}
}
