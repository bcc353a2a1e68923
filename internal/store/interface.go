package store

import (
	"errors"
)

var ErrNotFound = errors.New("not found")

// QueueStore is the durable store of pending operations.
// Implementations must survive process restart: a committed Put is never
// lost, a committed Delete never resurrects.
type QueueStore interface {
	// Put inserts or overwrites the operation keyed by its ID. The
	// insertion sequence of an existing entry is preserved on overwrite.
	Put(op *Operation) error

	// Get returns the operation or ErrNotFound.
	Get(id string) (*Operation, error)

	// Update applies fn to the stored operation inside one transaction.
	// A missing id returns ErrNotFound and never inserts an entry, so a
	// concurrent Delete wins over an in-flight mutation.
	Update(id string, fn func(op *Operation)) error

	// Delete removes the operation. Deleting an absent id is not an error.
	Delete(id string) error

	// ListAll returns all queued operations in insertion order.
	ListAll() ([]*Operation, error)

	// Count returns the number of queued operations.
	Count() (int, error)
}

// CacheStore is a durable key-value store for cached reads. It does not
// enforce TTLs; expiry is the cache facade's concern.
type CacheStore interface {
	Put(key string, entry CacheEntry) error

	// Get returns the entry or ErrNotFound.
	Get(key string) (CacheEntry, error)

	Delete(key string) error

	// DeleteMatching removes every entry whose key satisfies match.
	DeleteMatching(match func(key string) bool) error

	Clear() error
}
