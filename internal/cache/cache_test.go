package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-sync-engine/internal/store"
)

func newTestCache(t *testing.T, defaultTTL time.Duration) (*Cache, store.CacheStore) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cs := store.NewCacheStore(s)
	return New(cs, defaultTTL), cs
}

func TestGetReturnsFreshEntry(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Put("bookings:b1", map[string]interface{}{"status": "confirmed"}, time.Minute))

	value, ok := c.Get("bookings:b1")
	require.True(t, ok)
	assert.Equal(t, "confirmed", value["status"])
}

func TestExpiredEntryIsEvictedOnRead(t *testing.T) {
	c, cs := newTestCache(t, time.Minute)

	base := time.Now().UTC()
	c.now = func() time.Time { return base }
	require.NoError(t, c.Put("profiles:u1", map[string]interface{}{"name": "Ada"}, 100*time.Millisecond))

	// Just inside the TTL.
	c.now = func() time.Time { return base.Add(100 * time.Millisecond) }
	_, ok := c.Get("profiles:u1")
	assert.True(t, ok)

	// Just past it.
	c.now = func() time.Time { return base.Add(101 * time.Millisecond) }
	_, ok = c.Get("profiles:u1")
	assert.False(t, ok)

	// The expired entry is gone from the store, not just hidden.
	_, err := cs.Get("profiles:u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetOrFetchSkipsFetcherOnHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Put("listings:l1", map[string]interface{}{"title": "Marquee"}, time.Minute))

	fetched := 0
	value, err := c.GetOrFetch(context.Background(), "listings:l1", time.Minute,
		func(ctx context.Context) (map[string]interface{}, error) {
			fetched++
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 0, fetched)
	assert.Equal(t, "Marquee", value["title"])
}

func TestGetOrFetchStoresOnMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	value, err := c.GetOrFetch(context.Background(), "listings:l2", time.Minute,
		func(ctx context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{"title": "Catering"}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Catering", value["title"])

	cached, ok := c.Get("listings:l2")
	require.True(t, ok)
	assert.Equal(t, "Catering", cached["title"])
}

func TestGetOrFetchFailureIsNotCached(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	boom := errors.New("backend down")
	_, err := c.GetOrFetch(context.Background(), "listings:l3", time.Minute,
		func(ctx context.Context) (map[string]interface{}, error) {
			return nil, boom
		})
	require.ErrorIs(t, err, boom)

	_, ok := c.Get("listings:l3")
	assert.False(t, ok)
}

func TestPutUsesDefaultTTLWhenUnset(t *testing.T) {
	c, cs := newTestCache(t, 42*time.Second)

	require.NoError(t, c.Put("k", map[string]interface{}{"v": 1}, 0))

	entry, err := cs.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, entry.TTL)
}

func TestInvalidateMatchingRemovesPrefixOnly(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Put("messages:t1", map[string]interface{}{"n": 1}, time.Minute))
	require.NoError(t, c.Put("messages:t2", map[string]interface{}{"n": 2}, time.Minute))
	require.NoError(t, c.Put("bookings:b1", map[string]interface{}{"n": 3}, time.Minute))

	require.NoError(t, c.InvalidateMatching("messages:"))

	_, ok := c.Get("messages:t1")
	assert.False(t, ok)
	_, ok = c.Get("messages:t2")
	assert.False(t, ok)
	_, ok = c.Get("bookings:b1")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Put("a", map[string]interface{}{"n": 1}, time.Minute))
	require.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)

	// Store still usable after a clear.
	require.NoError(t, c.Put("b", map[string]interface{}{"n": 2}, time.Minute))
	_, ok = c.Get("b")
	assert.True(t, ok)
}
