// Package cache layers TTL enforcement and read-through fetching on top
// of the durable cache store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"offline-sync-engine/internal/logger"
	"offline-sync-engine/internal/store"
)

// Fetcher loads a value from its source of truth on a cache miss.
type Fetcher func(ctx context.Context) (map[string]interface{}, error)

type Cache struct {
	store      store.CacheStore
	defaultTTL time.Duration
	now        func() time.Time
}

func New(s store.CacheStore, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &Cache{
		store:      s,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// GetOrFetch returns the cached value for key if present and not expired.
// On a miss it calls fetch; a successful fetch is stored with the given
// ttl (or the default when ttl <= 0) and returned. Fetch failures are
// returned to the caller and never cached.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (map[string]interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	if fetch == nil {
		return nil, fmt.Errorf("cache miss for %s and no fetcher given", key)
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", key, err)
	}

	if err := c.Put(key, value, ttl); err != nil {
		// The fetched value is still good; a store failure only costs
		// the next read a refetch.
		logger.Log.Warn("Failed to cache fetched value", zap.String("key", key), zap.Error(err))
	}

	return value, nil
}

// Get returns the cached value without fetching. An entry found expired
// is deleted by this read and reported as absent.
func (c *Cache) Get(key string) (map[string]interface{}, bool) {
	entry, err := c.store.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		logger.Log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if c.now().Sub(entry.Timestamp) > entry.TTL {
		if err := c.store.Delete(key); err != nil {
			logger.Log.Warn("Failed to evict expired entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	return entry.Data, true
}

func (c *Cache) Put(key string, value map[string]interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.store.Put(key, store.CacheEntry{
		Data:      value,
		Timestamp: c.now().UTC(),
		TTL:       ttl,
	})
}

func (c *Cache) Invalidate(key string) error {
	return c.store.Delete(key)
}

// InvalidateMatching removes every entry whose key starts with prefix,
// typically "<collection>:" after a confirmed write made those reads
// stale.
func (c *Cache) InvalidateMatching(prefix string) error {
	return c.store.DeleteMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (c *Cache) Clear() error {
	return c.store.Clear()
}
