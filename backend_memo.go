package tiercache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NewMemoBackend decorates backend with per-process read memoization.
// Values written through the decorator are memoized until their own expiry;
// values read from the inner backend are memoized for at most ttl, which
// defaults to the backend default TTL. Misses and errors are never memoized.
// Writes made directly to the inner backend are not seen until the memo expires.
// @group Memoization
//
// Example: memoize a shared backend
//
//	ctx := context.Background()
//	base := tiercache.NewRedisBackend(ctx, rdb)
//	local := tiercache.NewBackendLocal[Video](tiercache.NewMemoBackend(base, time.Minute), videoID)
//	_ = local
func NewMemoBackend(backend Backend, ttl time.Duration) Backend {
	if ttl <= 0 {
		ttl = defaultBackendTTL
	}
	return &memoBackend{
		backend: backend,
		ttl:     ttl,
		items:   gocache.New(ttl, ttl),
	}
}

type memoBackend struct {
	backend Backend
	ttl     time.Duration
	items   *gocache.Cache
}

func (b *memoBackend) Driver() Driver {
	return b.backend.Driver()
}

func (b *memoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if item, ok := b.items.Get(key); ok {
		if body, ok := item.([]byte); ok {
			return cloneBytes(body), true, nil
		}
	}

	body, exists, err := b.backend.Get(ctx, key)
	if err != nil || !exists {
		return nil, false, err
	}
	b.items.Set(key, cloneBytes(body), b.ttl)
	return cloneBytes(body), true, nil
}

func (b *memoBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.backend.Set(ctx, key, value, ttl); err != nil {
		b.items.Delete(key)
		return err
	}
	if ttl <= 0 || ttl > b.ttl {
		ttl = b.ttl
	}
	if value == nil {
		value = []byte{}
	}
	b.items.Set(key, cloneBytes(value), ttl)
	return nil
}

func (b *memoBackend) Delete(ctx context.Context, key string) error {
	b.items.Delete(key)
	return b.backend.Delete(ctx, key)
}
