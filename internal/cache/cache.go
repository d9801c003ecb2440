package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL is applied to resource snapshots unless configured otherwise.
const DefaultTTL = 3600 * time.Second

// Store is a key-value cache with optional per-key expiry.
//
// Get reports a miss on any underlying failure; the cache is an optimization,
// never a source of truth. Delete is idempotent and returns 0 for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) (int64, error)
}

// Key builds the "<resource-type>:<id>" cache key.
func Key(resource, id string) string {
	return fmt.Sprintf("%s:%s", resource, id)
}
