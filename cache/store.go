package cache

import (
	"context"
	"time"
)

// SharedStore is the cache tier shared by every instance of the service.
type SharedStore interface {
	// Get returns false when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix without blocking
	// the backend and returns the number of removed keys.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}
