package drivers

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/creastat/convstore/session"
)

// MemoryCache implements session.SwapCache with an in-process map and lazy expiry.
// Only suitable for a single instance; multi-instance deployments use Redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	prefix  string
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c, _ := NewCache(StoreTypeMemory, opts...)
	return c.(*MemoryCache)
}

func newMemoryCache(cfg *config) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     cfg.ttl,
		prefix:  cfg.keyPrefix,
		now:     cfg.now,
	}
}

// Get implements session.Cache.
func (c *MemoryCache) Get(ctx context.Context, id string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(c.key(id))
	if !ok {
		return nil, nil
	}
	return slices.Clone(e.value), nil
}

// Put implements session.Cache.
func (c *MemoryCache) Put(ctx context.Context, id string, snapshot []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(c.key(id), snapshot, ttl)
	return nil
}

// Delete implements session.Cache.
func (c *MemoryCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, c.key(id))
	return nil
}

// Touch implements session.Cache.
func (c *MemoryCache) Touch(ctx context.Context, id string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(id)
	e, ok := c.live(key)
	if !ok {
		return nil
	}
	e.expiresAt = c.now().Add(c.effectiveTTL(ttl))
	c.entries[key] = e
	return nil
}

// CompareAndSwap implements session.SwapCache.
func (c *MemoryCache) CompareAndSwap(ctx context.Context, id string, old, snapshot []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(id)
	e, ok := c.live(key)
	switch {
	case old == nil && ok:
		return false, nil
	case old != nil && (!ok || !bytes.Equal(e.value, old)):
		return false, nil
	}

	c.set(key, snapshot, ttl)
	return true, nil
}

// Close implements session.Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}

// live returns the entry under key, dropping it if expired. Caller holds c.mu.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (c *MemoryCache) set(key string, value []byte, ttl time.Duration) {
	c.entries[key] = memoryEntry{
		value:     slices.Clone(value),
		expiresAt: c.now().Add(c.effectiveTTL(ttl)),
	}
}

func (c *MemoryCache) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.ttl
	}
	return ttl
}

func (c *MemoryCache) key(id string) string {
	return c.prefix + id
}

var _ session.SwapCache = (*MemoryCache)(nil)
