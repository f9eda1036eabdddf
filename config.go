package tiercache

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultPrefix                = "app"
	defaultBackendTTL            = 5 * time.Minute
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultSQLTable              = "tiercache_entries"
	defaultDynamoTable           = "tiercache_entries"
	defaultDynamoRegion          = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "tiercache-file")
}

// BackendConfig controls how a backend is constructed.
type BackendConfig struct {
	Driver Driver

	// DefaultTTL is used when a write provides ttl <= 0.
	DefaultTTL time.Duration

	// MemoryCleanupInterval controls in-process eviction sweeps.
	MemoryCleanupInterval time.Duration

	// Prefix namespaces keys in shared backends (redis, memcached, sql, dynamodb, nats).
	Prefix string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// FileDir controls where the file driver stores entries.
	FileDir string

	// MemcachedAddresses lists memcached servers for DriverMemcached.
	MemcachedAddresses []string

	// SQLDriverName is a database/sql driver name: "mysql", "pgx" or "sqlite".
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// DynamoClient is optional; one is built from the endpoint and region when nil.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL leaves expiry to the bucket's MaxAge instead of an envelope.
	NATSBucketTTL bool

	Compression   CompressionCodec
	MaxValueBytes int
	EncryptionKey []byte

	// Memo wraps the backend with per-process read memoization.
	Memo bool
}

func (c BackendConfig) withDefaults() BackendConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultBackendTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return c
}
