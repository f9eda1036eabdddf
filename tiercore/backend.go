package tiercore

import (
	"context"
	"time"
)

// Backend is the byte-level storage contract behind every tier adapter.
//
// Get reports a miss as (nil, false, nil). A non-nil error means the lookup
// itself failed. Implementations return a copy the caller may mutate.
type Backend interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
