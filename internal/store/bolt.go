package store

import (
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"offline-sync-engine/internal/logger"
)

var (
	bucketQueue = []byte("queue")
	bucketCache = []byte("cache")
)

// BoltStore owns the single bbolt file shared by the queue and cache stores.
type BoltStore struct {
	db *bolt.DB
}

func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketQueue, bucketCache} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Info("Opened local store", zap.String("path", path))

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// BoltQueue implements QueueStore over the queue bucket.
type BoltQueue struct {
	s *BoltStore
}

func NewQueueStore(s *BoltStore) *BoltQueue {
	return &BoltQueue{s: s}
}

func (q *BoltQueue) Put(op *Operation) error {
	return q.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)

		if existing := b.Get([]byte(op.ID)); existing != nil {
			prev, err := decodeOperation(existing)
			if err != nil {
				return err
			}
			op.Seq = prev.Seq
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to assign sequence: %w", err)
			}
			op.Seq = seq
		}

		raw, err := encodeOperation(op)
		if err != nil {
			return err
		}
		return b.Put([]byte(op.ID), raw)
	})
}

func (q *BoltQueue) Update(id string, fn func(op *Operation)) error {
	return q.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)

		raw := b.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}

		op, err := decodeOperation(raw)
		if err != nil {
			return err
		}

		fn(op)

		encoded, err := encodeOperation(op)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), encoded)
	})
}

func (q *BoltQueue) Get(id string) (*Operation, error) {
	var op *Operation
	err := q.s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketQueue).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := decodeOperation(raw)
		if err != nil {
			return err
		}
		op = decoded
		return nil
	})
	return op, err
}

func (q *BoltQueue) Delete(id string) error {
	return q.s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete([]byte(id))
	})
}

func (q *BoltQueue) ListAll() ([]*Operation, error) {
	var ops []*Operation
	err := q.s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, raw []byte) error {
			op, err := decodeOperation(raw)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })
	return ops, nil
}

func (q *BoltQueue) Count() (int, error) {
	count := 0
	err := q.s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketQueue).Stats().KeyN
		return nil
	})
	return count, err
}

// BoltCache implements CacheStore over the cache bucket.
type BoltCache struct {
	s *BoltStore
}

func NewCacheStore(s *BoltStore) *BoltCache {
	return &BoltCache{s: s}
}

func (c *BoltCache) Put(key string, entry CacheEntry) error {
	raw, err := encodeCacheEntry(entry)
	if err != nil {
		return err
	}
	return c.s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), raw)
	})
}

func (c *BoltCache) Get(key string) (CacheEntry, error) {
	var entry CacheEntry
	err := c.s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCache).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := decodeCacheEntry(raw)
		if err != nil {
			return err
		}
		entry = decoded
		return nil
	})
	return entry, err
}

func (c *BoltCache) Delete(key string) error {
	return c.s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(key))
	})
}

func (c *BoltCache) DeleteMatching(match func(key string) bool) error {
	return c.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)

		var doomed [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			if match(string(k)) {
				key := make([]byte, len(k))
				copy(key, k)
				doomed = append(doomed, key)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BoltCache) Clear() error {
	return c.s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketCache); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketCache)
		return err
	})
}
