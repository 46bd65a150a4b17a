package drivers

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/creastat/convstore/session"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements session.SwapCache using Redis string keys with expiry.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a new Redis-based session cache.
func NewRedisCache(client redis.UniversalClient, opts ...Option) *RedisCache {
	cfg := &config{
		ttl:       session.DefaultTTL,
		keyPrefix: session.KeyPrefix,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.redisClient = client
	if cfg.ttl <= 0 {
		cfg.ttl = session.DefaultTTL
	}
	return newRedisCache(cfg)
}

func newRedisCache(cfg *config) *RedisCache {
	return &RedisCache{
		client: cfg.redisClient,
		ttl:    cfg.ttl,
		prefix: cfg.keyPrefix,
	}
}

// Get implements session.Cache.
// Returns nil if the key is absent (not an error).
func (s *RedisCache) Get(ctx context.Context, id string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Put implements session.Cache.
func (s *RedisCache) Put(ctx context.Context, id string, snapshot []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(id), snapshot, s.effectiveTTL(ttl)).Err()
}

// Delete implements session.Cache.
func (s *RedisCache) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Touch implements session.Cache.
func (s *RedisCache) Touch(ctx context.Context, id string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.key(id), s.effectiveTTL(ttl)).Err()
}

// CompareAndSwap implements session.SwapCache using WATCH/MULTI/EXEC.
func (s *RedisCache) CompareAndSwap(ctx context.Context, id string, old, snapshot []byte, ttl time.Duration) (bool, error) {
	key := s.key(id)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		// Get current value
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if old != nil {
				return nil
			}
		case err != nil:
			return err
		case old == nil || !bytes.Equal(cur, old):
			return nil
		}

		// Execute transaction
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, snapshot, s.effectiveTTL(ttl))
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Close implements session.Cache.
func (s *RedisCache) Close() error {
	return s.client.Close()
}

func (s *RedisCache) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.ttl
	}
	return ttl
}

// key constructs the Redis key for a conversation ID.
func (s *RedisCache) key(id string) string {
	return s.prefix + id
}

var _ session.SwapCache = (*RedisCache)(nil)
