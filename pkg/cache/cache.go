// Package cache provides a small key/value cache abstraction used for
// cache-aside reads and write-path invalidation. Values are stored as JSON.
package cache

import "context"

// Store is the cache contract. Implementations must treat missing keys as
// (found=false, nil error) so callers can distinguish a miss from an outage.
type Store interface {
	// Get unmarshals the cached value for key into dest. found reports
	// whether the key was present.
	Get(ctx context.Context, key string, dest any) (found bool, err error)

	// SetWithTTL stores value under key for the given TTL.
	SetWithTTL(ctx context.Context, key string, value any, ttlSeconds int) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every key starting with prefix and returns the
	// number of keys removed. Implementations must not block the store while
	// scanning.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}
