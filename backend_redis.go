package tiercache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRedisUnavailable = errors.New("tiercache: redis client unavailable")

// RedisClient captures the subset of redis.Client used by the backend.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisBackend struct {
	client     RedisClient
	defaultTTL time.Duration
	prefix     string
}

func newRedisBackend(client RedisClient, defaultTTL time.Duration, prefix string) Backend {
	if defaultTTL <= 0 {
		defaultTTL = defaultBackendTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &redisBackend{
		client:     client,
		defaultTTL: defaultTTL,
		prefix:     prefix,
	}
}

func (b *redisBackend) Driver() Driver {
	return DriverRedis
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.client == nil {
		return nil, false, errRedisUnavailable
	}
	value, err := b.client.Get(ctx, b.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.client == nil {
		return errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	return b.client.Set(ctx, b.cacheKey(key), value, ttl).Err()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	if b.client == nil {
		return errRedisUnavailable
	}
	return b.client.Del(ctx, b.cacheKey(key)).Err()
}

func (b *redisBackend) cacheKey(key string) string {
	return b.prefix + ":" + key
}
