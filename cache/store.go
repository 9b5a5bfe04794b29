package cache

import (
	"context"
)

// Store is the capability contract every cache backend implements.
type Store interface {
	// Get returns the entry for key, or (nil, nil) when absent. A miss is a
	// normal result, never an error.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set upserts by entry.Key, replacing every field of any prior entry.
	Set(ctx context.Context, entry Entry) error
	// Delete removes the entry for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
	// Close releases any held connection resource. Safe to call repeatedly
	// and on a backend that was never used.
	Close() error
}
