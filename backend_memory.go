package tiercache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryBackend struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

func newMemoryBackend(defaultTTL, cleanupInterval time.Duration) Backend {
	if defaultTTL <= 0 {
		defaultTTL = defaultBackendTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryBackend{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (b *memoryBackend) Driver() Driver {
	return DriverMemory
}

func (b *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	b.cache.Set(key, cloneBytes(value), ttl)
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.cache.Delete(key)
	return nil
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone
}
