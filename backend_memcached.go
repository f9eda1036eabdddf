package tiercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const (
	memcachedMaxKeyLen      = 250
	memcachedRelativeTTLMax = 30 * 24 * time.Hour
	defaultMemcachedAddr    = "127.0.0.1:11211"
	defaultMemcachedTimeout = 3 * time.Second
)

// MemcachedClient captures the subset of memcache.Client used by the backend.
type MemcachedClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

type memcachedBackend struct {
	client     MemcachedClient
	defaultTTL time.Duration
	prefix     string
}

func newMemcachedBackend(addrs []string, defaultTTL time.Duration, prefix string) Backend {
	if len(addrs) == 0 {
		addrs = []string{defaultMemcachedAddr}
	}
	client := memcache.New(addrs...)
	client.Timeout = defaultMemcachedTimeout
	return newMemcachedBackendWithClient(client, defaultTTL, prefix)
}

func newMemcachedBackendWithClient(client MemcachedClient, defaultTTL time.Duration, prefix string) Backend {
	if defaultTTL <= 0 {
		defaultTTL = defaultBackendTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &memcachedBackend{client: client, defaultTTL: defaultTTL, prefix: prefix}
}

func (b *memcachedBackend) Driver() Driver { return DriverMemcached }

func (b *memcachedBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := b.client.Get(b.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cloneBytes(item.Value), true, nil
}

func (b *memcachedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	return b.client.Set(&memcache.Item{
		Key:        b.cacheKey(key),
		Value:      cloneBytes(value),
		Expiration: memcachedExpiration(ttl, time.Now()),
	})
}

func (b *memcachedBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.client.Delete(b.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// cacheKey hashes keys memcached would reject (too long or containing
// whitespace/control bytes).
func (b *memcachedBackend) cacheKey(key string) string {
	full := b.prefix + ":" + key
	if len(full) <= memcachedMaxKeyLen && legalMemcachedKey(full) {
		return full
	}
	sum := sha256.Sum256([]byte(full))
	return b.prefix + ":h:" + hex.EncodeToString(sum[:])
}

func legalMemcachedKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

// memcachedExpiration converts ttl to memcached's expiration field: relative
// seconds up to 30 days, an absolute unix time beyond that.
func memcachedExpiration(ttl time.Duration, now time.Time) int32 {
	if ttl > memcachedRelativeTTLMax {
		return int32(now.Add(ttl).Unix())
	}
	secs := int32((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
