package tiercache

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option mutates the settings of a CacheBackedStore.
type Option func(settings) settings

type settings struct {
	observer      Observer
	tracer        trace.Tracer
	detachPersist bool
}

func defaultSettings() settings {
	return settings{
		tracer:        defaultTracer(),
		detachPersist: true,
	}
}

// WithObserver attaches an observer to receive fetch events.
func WithObserver(o Observer) Option {
	return func(s settings) settings {
		s.observer = o
		return s
	}
}

// WithTracer overrides the OpenTelemetry tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(s settings) settings {
		if t != nil {
			s.tracer = t
		}
		return s
	}
}

// WithDetachedPersist controls whether the write-back runs with a context
// that ignores cancellation of the caller's context. Enabled by default.
func WithDetachedPersist(detach bool) Option {
	return func(s settings) settings {
		s.detachPersist = detach
		return s
	}
}

// BackendOption mutates BackendConfig when constructing a backend.
type BackendOption func(BackendConfig) BackendConfig

// WithDefaultTTL overrides the fallback TTL used when ttl <= 0.
func WithDefaultTTL(ttl time.Duration) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.DefaultTTL = ttl
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory driver.
func WithMemoryCleanupInterval(interval time.Duration) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}

// WithPrefix sets the key prefix for shared backends (e.g., redis).
func WithPrefix(prefix string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
func WithRedisClient(client RedisClient) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
func WithFileDir(dir string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithMemcachedAddresses sets the memcached servers.
func WithMemcachedAddresses(addrs ...string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.MemcachedAddresses = addrs
		return cfg
	}
}

// WithSQL configures the sql driver connection.
func WithSQL(driverName, dsn, table string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithDynamoClient injects a DynamoDB client instead of building one.
func WithDynamoClient(client DynamoAPI) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoEndpoint sets a custom DynamoDB endpoint (e.g. DynamoDB Local).
func WithDynamoEndpoint(endpoint string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithDynamoRegion sets the DynamoDB region.
func WithDynamoRegion(region string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.DynamoRegion = region
		return cfg
	}
}

// WithDynamoTable sets the DynamoDB table name.
func WithDynamoTable(table string) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.DynamoTable = table
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream key-value bucket; required when using DriverNATS.
func WithNATSKeyValue(kv NATSKeyValue) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithNATSBucketTTL stores raw values and leaves expiry to the bucket's MaxAge.
func WithNATSBucketTTL(enabled bool) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.NATSBucketTTL = enabled
		return cfg
	}
}

// WithCompression enables value compression.
func WithCompression(codec CompressionCodec) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects writes larger than limit bytes (after compression).
func WithMaxValueBytes(limit int) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.MaxValueBytes = limit
		return cfg
	}
}

// WithEncryptionKey enables AES-GCM value encryption. The key must be 16, 24 or 32 bytes.
func WithEncryptionKey(key []byte) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.EncryptionKey = key
		return cfg
	}
}

// WithMemo wraps the backend with per-process read memoization.
func WithMemo(enabled bool) BackendOption {
	return func(cfg BackendConfig) BackendConfig {
		cfg.Memo = enabled
		return cfg
	}
}
