package tiercache

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned when BackendConfig names an unsupported driver.
var ErrUnknownDriver = errors.New("tiercache: unknown backend driver")

// NewBackend returns a concrete backend for the requested driver, wrapped with
// the configured shaping, encryption and memoization decorators.
// Caller is responsible for providing any driver-specific dependencies.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	backend, err := tiercache.NewBackend(ctx, tiercache.BackendConfig{
//		Driver: tiercache.DriverMemory,
//	})
//	fmt.Println(err == nil, backend.Driver()) // true memory
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	cfg = cfg.withDefaults()
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case DriverNull:
		backend = newNullBackend()
	case DriverMemory:
		backend = newMemoryBackend(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	case DriverFile:
		backend, err = newFileBackend(cfg.FileDir, cfg.DefaultTTL)
	case DriverRedis:
		backend = newRedisBackend(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverMemcached:
		backend = newMemcachedBackend(cfg.MemcachedAddresses, cfg.DefaultTTL, cfg.Prefix)
	case DriverSQL:
		backend, err = newSQLBackend(ctx, cfg)
	case DriverDynamo:
		backend, err = newDynamoBackend(ctx, cfg)
	case DriverNATS:
		backend = newNATSBackend(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", cfg.Driver, err)
	}
	return decorate(backend, cfg)
}

func decorate(backend Backend, cfg BackendConfig) (Backend, error) {
	backend, err := newEncryptingBackend(backend, cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	backend = newShapingBackend(backend, cfg.Compression, cfg.MaxValueBytes)
	if cfg.Memo {
		backend = NewMemoBackend(backend, cfg.DefaultTTL)
	}
	return backend, nil
}

// NewBackendWith builds a backend using a driver and a set of functional options.
// Construction failures are surfaced on every call of the returned backend.
// @group Constructors
//
// Example: memory backend (options)
//
//	ctx := context.Background()
//	backend := tiercache.NewBackendWith(ctx, tiercache.DriverMemory, tiercache.WithDefaultTTL(time.Minute))
//	fmt.Println(backend.Driver()) // memory
func NewBackendWith(ctx context.Context, driver Driver, opts ...BackendOption) Backend {
	cfg := BackendConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return &errorBackend{driver: driver, err: err}
	}
	return backend
}

// NewMemoryBackend is a convenience for an in-process backend.
// @group Constructors
func NewMemoryBackend(ctx context.Context, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverMemory, opts...)
}

// NewNullBackend returns a backend that never holds anything.
// @group Constructors
func NewNullBackend(ctx context.Context, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverNull, opts...)
}

// NewFileBackend is a convenience for a filesystem-backed backend.
// @group Constructors
func NewFileBackend(ctx context.Context, dir string, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverFile, append([]BackendOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisBackend is a convenience for a redis-backed backend. Redis client is required.
// @group Constructors
//
// Example: redis helper
//
//	ctx := context.Background()
//	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	backend := tiercache.NewRedisBackend(ctx, rdb, tiercache.WithPrefix("videos"))
//	fmt.Println(backend.Driver()) // redis
func NewRedisBackend(ctx context.Context, client RedisClient, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverRedis, append([]BackendOption{WithRedisClient(client)}, opts...)...)
}

// NewMemcachedBackend is a convenience for a memcached-backed backend.
// @group Constructors
func NewMemcachedBackend(ctx context.Context, addrs []string, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverMemcached, append([]BackendOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}

// NewSQLBackend is a convenience for a database/sql backend ("mysql", "pgx" or "sqlite").
// @group Constructors
func NewSQLBackend(ctx context.Context, driverName, dsn string, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverSQL, append([]BackendOption{WithSQL(driverName, dsn, "")}, opts...)...)
}

// NewDynamoBackend is a convenience for a DynamoDB-backed backend.
// @group Constructors
func NewDynamoBackend(ctx context.Context, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverDynamo, opts...)
}

// NewNATSBackend is a convenience for a NATS JetStream key-value backend.
// @group Constructors
func NewNATSBackend(ctx context.Context, kv NATSKeyValue, opts ...BackendOption) Backend {
	return NewBackendWith(ctx, DriverNATS, append([]BackendOption{WithNATSKeyValue(kv)}, opts...)...)
}
