// Package config loads the tiercache command configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/goforj/tiercache"
)

// Remote kinds accepted by TIERCACHE_REMOTE_KIND.
const (
	RemoteHTTP    = "http"
	RemoteElastic = "elastic"
	RemoteBackend = "backend"
)

// Config holds the settings of the serve and fetch commands.
type Config struct {
	ListenAddr string `env:"TIERCACHE_LISTEN_ADDR" envDefault:":8080"`
	IDField    string `env:"TIERCACHE_ID_FIELD" envDefault:"id"`

	LocalDriver    string        `env:"TIERCACHE_LOCAL_DRIVER" envDefault:"memory"`
	Prefix         string        `env:"TIERCACHE_PREFIX" envDefault:"tiercache"`
	TTL            time.Duration `env:"TIERCACHE_TTL" envDefault:"5m"`
	CleanupEvery   time.Duration `env:"TIERCACHE_MEMORY_CLEANUP" envDefault:"10m"`
	FileDir        string        `env:"TIERCACHE_FILE_DIR"`
	Memo           bool          `env:"TIERCACHE_MEMO"`
	Compression    string        `env:"TIERCACHE_COMPRESSION" envDefault:"none"`
	MaxValueBytes  int           `env:"TIERCACHE_MAX_VALUE_BYTES"`
	EncryptionKey  string        `env:"TIERCACHE_ENCRYPTION_KEY"`
	RedisAddr      string        `env:"TIERCACHE_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword  string        `env:"TIERCACHE_REDIS_PASSWORD"`
	RedisDB        int           `env:"TIERCACHE_REDIS_DB"`
	MemcachedAddrs []string      `env:"TIERCACHE_MEMCACHED_ADDRS" envSeparator:"," envDefault:"127.0.0.1:11211"`
	SQLDriver      string        `env:"TIERCACHE_SQL_DRIVER" envDefault:"sqlite"`
	SQLDSN         string        `env:"TIERCACHE_SQL_DSN"`
	SQLTable       string        `env:"TIERCACHE_SQL_TABLE"`
	DynamoEndpoint string        `env:"TIERCACHE_DYNAMO_ENDPOINT"`
	DynamoRegion   string        `env:"TIERCACHE_DYNAMO_REGION"`
	DynamoTable    string        `env:"TIERCACHE_DYNAMO_TABLE"`
	NATSURL        string        `env:"TIERCACHE_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NATSBucket     string        `env:"TIERCACHE_NATS_BUCKET" envDefault:"tiercache"`

	RemoteKind    string        `env:"TIERCACHE_REMOTE_KIND" envDefault:"http"`
	RemoteDriver  string        `env:"TIERCACHE_REMOTE_DRIVER"`
	RemoteHTTPURL string        `env:"TIERCACHE_REMOTE_HTTP_URL"`
	RemoteTimeout time.Duration `env:"TIERCACHE_REMOTE_TIMEOUT" envDefault:"10s"`
	ElasticURL    string        `env:"TIERCACHE_ELASTIC_URL" envDefault:"http://127.0.0.1:9200"`
	ElasticIndex  string        `env:"TIERCACHE_ELASTIC_INDEX" envDefault:"items"`
	ElasticSniff  bool          `env:"TIERCACHE_ELASTIC_SNIFF"`

	OTelEndpoint string `env:"TIERCACHE_OTEL_ENDPOINT"`
	ServiceName  string `env:"TIERCACHE_SERVICE_NAME" envDefault:"tiercache"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the command configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if !tiercache.Driver(c.LocalDriver).Valid() {
		return fmt.Errorf("TIERCACHE_LOCAL_DRIVER: unknown driver %q", c.LocalDriver)
	}
	if c.IDField == "" {
		return errors.New("TIERCACHE_ID_FIELD must not be empty")
	}
	switch tiercache.CompressionCodec(c.Compression) {
	case tiercache.CompressionNone, tiercache.CompressionGzip, tiercache.CompressionSnappy:
	default:
		return fmt.Errorf("TIERCACHE_COMPRESSION: unknown codec %q", c.Compression)
	}
	if n := len(c.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("TIERCACHE_ENCRYPTION_KEY: %w", tiercache.ErrEncryptionKey)
	}
	switch c.RemoteKind {
	case RemoteHTTP:
		if c.RemoteHTTPURL == "" {
			return errors.New("TIERCACHE_REMOTE_HTTP_URL is required for the http remote")
		}
	case RemoteElastic:
		if c.ElasticURL == "" || c.ElasticIndex == "" {
			return errors.New("TIERCACHE_ELASTIC_URL and TIERCACHE_ELASTIC_INDEX are required for the elastic remote")
		}
	case RemoteBackend:
		if !tiercache.Driver(c.RemoteDriver).Valid() {
			return fmt.Errorf("TIERCACHE_REMOTE_DRIVER: unknown driver %q", c.RemoteDriver)
		}
	default:
		return fmt.Errorf("TIERCACHE_REMOTE_KIND: unknown kind %q", c.RemoteKind)
	}
	return nil
}

// Backend returns the backend settings for driver. Connections the command
// opens itself (redis, nats) are left for the caller to fill in.
func (c Config) Backend(driver tiercache.Driver, prefix string) tiercache.BackendConfig {
	var key []byte
	if c.EncryptionKey != "" {
		key = []byte(c.EncryptionKey)
	}
	return tiercache.BackendConfig{
		Driver:                driver,
		DefaultTTL:            c.TTL,
		MemoryCleanupInterval: c.CleanupEvery,
		Prefix:                prefix,
		FileDir:               c.FileDir,
		MemcachedAddresses:    c.MemcachedAddrs,
		SQLDriverName:         c.SQLDriver,
		SQLDSN:                c.SQLDSN,
		SQLTable:              c.SQLTable,
		DynamoEndpoint:        c.DynamoEndpoint,
		DynamoRegion:          c.DynamoRegion,
		DynamoTable:           c.DynamoTable,
		Compression:           tiercache.CompressionCodec(c.Compression),
		MaxValueBytes:         c.MaxValueBytes,
		EncryptionKey:         key,
		Memo:                  c.Memo,
	}
}
