package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nulzo/llm-relay/internal/store/cache"
)

type item struct {
	data      []byte
	expiresAt time.Time
}

// Cache is an in-process implementation of cache.CacheService. Entries are
// serialized to JSON so callers see the same value semantics as the redis
// backend. Expired entries are evicted lazily on read.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
}

func New() *Cache {
	return &Cache{items: make(map[string]item)}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return cache.ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(it.data, dest)
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = item{data: data, expiresAt: expires}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}
