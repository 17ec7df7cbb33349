// Package store is the narrow client for the external key-value store that
// holds index entries across runs.
package store

import "context"

// Store is the subset of key-value operations the index needs.
// Get returns an error wrapping models.ErrNotFound when key is absent.
// Connection failures wrap models.ErrStoreConnection.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every key starting with prefix. Order is unspecified.
	Scan(ctx context.Context, prefix string, fn func(key string) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)
