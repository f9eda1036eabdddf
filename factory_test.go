package tiercache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestBackendConfigWithDefaults(t *testing.T) {
	cfg := BackendConfig{}.withDefaults()
	if cfg.Driver != DriverMemory || cfg.DefaultTTL != defaultBackendTTL || cfg.Prefix != defaultPrefix {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SQLTable != defaultSQLTable || cfg.DynamoTable != defaultDynamoTable || cfg.DynamoRegion != defaultDynamoRegion {
		t.Fatalf("unexpected table defaults: %+v", cfg)
	}
	if cfg.Compression != CompressionNone || cfg.FileDir != defaultFileDir() {
		t.Fatalf("unexpected shaping defaults: %+v", cfg)
	}

	explicit := BackendConfig{Driver: DriverFile, DefaultTTL: time.Second, Prefix: "p", FileDir: "/tmp/x"}.withDefaults()
	if explicit.Driver != DriverFile || explicit.DefaultTTL != time.Second || explicit.Prefix != "p" || explicit.FileDir != "/tmp/x" {
		t.Fatalf("expected explicit values preserved: %+v", explicit)
	}
}

func TestBackendOptionsMutateConfig(t *testing.T) {
	kv := newStubNATSKeyValue("b")
	opts := []BackendOption{
		WithDefaultTTL(time.Second),
		WithMemoryCleanupInterval(2 * time.Second),
		WithPrefix("p"),
		WithFileDir("/d"),
		WithMemcachedAddresses("a:1", "b:2"),
		WithSQL("pgx", "dsn", "tbl"),
		WithDynamoEndpoint("http://localhost:8000"),
		WithDynamoRegion("eu-west-1"),
		WithDynamoTable("dt"),
		WithNATSKeyValue(kv),
		WithNATSBucketTTL(true),
		WithCompression(CompressionSnappy),
		WithMaxValueBytes(10),
		WithEncryptionKey([]byte("k")),
		WithMemo(true),
	}
	cfg := BackendConfig{}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	if cfg.DefaultTTL != time.Second || cfg.MemoryCleanupInterval != 2*time.Second || cfg.Prefix != "p" || cfg.FileDir != "/d" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.MemcachedAddresses) != 2 || cfg.SQLDriverName != "pgx" || cfg.SQLDSN != "dsn" || cfg.SQLTable != "tbl" {
		t.Fatalf("unexpected connection config: %+v", cfg)
	}
	if cfg.DynamoEndpoint == "" || cfg.DynamoRegion != "eu-west-1" || cfg.DynamoTable != "dt" {
		t.Fatalf("unexpected dynamo config: %+v", cfg)
	}
	if cfg.NATSKeyValue != kv || !cfg.NATSBucketTTL || cfg.Compression != CompressionSnappy || cfg.MaxValueBytes != 10 || !cfg.Memo {
		t.Fatalf("unexpected decorator config: %+v", cfg)
	}
}

func TestNewBackendDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  BackendConfig
		want Driver
	}{
		{BackendConfig{}, DriverMemory},
		{BackendConfig{Driver: DriverNull}, DriverNull},
		{BackendConfig{Driver: DriverFile, FileDir: t.TempDir()}, DriverFile},
		{BackendConfig{Driver: DriverRedis, RedisClient: newStubRedisClient()}, DriverRedis},
		{BackendConfig{Driver: DriverMemcached, MemcachedAddresses: []string{"127.0.0.1:1"}}, DriverMemcached},
		{BackendConfig{Driver: DriverSQL, SQLDriverName: "sqlite", SQLDSN: filepath.Join(t.TempDir(), "c.db")}, DriverSQL},
		{BackendConfig{Driver: DriverDynamo, DynamoClient: newStubDynamoClient()}, DriverDynamo},
		{BackendConfig{Driver: DriverNATS, NATSKeyValue: newStubNATSKeyValue("b")}, DriverNATS},
	}
	for _, tc := range cases {
		b, err := NewBackend(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("NewBackend(%s) failed: %v", tc.want, err)
		}
		if b.Driver() != tc.want {
			t.Fatalf("expected driver %s, got %s", tc.want, b.Driver())
		}
	}
}

func TestNewBackendErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewBackend(ctx, BackendConfig{Driver: "bogus"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected unknown driver, got %v", err)
	}
	if _, err := NewBackend(ctx, BackendConfig{Driver: DriverSQL}); !errors.Is(err, ErrSQLConfig) {
		t.Fatalf("expected sql config error, got %v", err)
	}
	if _, err := NewBackend(ctx, BackendConfig{EncryptionKey: []byte("bad")}); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected encryption key error, got %v", err)
	}
}

func TestNewBackendWithReturnsErrorBackend(t *testing.T) {
	ctx := context.Background()
	b := NewBackendWith(ctx, DriverSQL)
	if b.Driver() != DriverSQL {
		t.Fatalf("expected driver identity preserved, got %s", b.Driver())
	}
	if _, _, err := b.Get(ctx, "k"); !errors.Is(err, ErrSQLConfig) {
		t.Fatalf("expected construction error on get, got %v", err)
	}
	if err := b.Set(ctx, "k", nil, 0); !errors.Is(err, ErrSQLConfig) {
		t.Fatalf("expected construction error on set, got %v", err)
	}
	if err := b.Delete(ctx, "k"); !errors.Is(err, ErrSQLConfig) {
		t.Fatalf("expected construction error on delete, got %v", err)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	ctx := context.Background()
	cases := map[Driver]Backend{
		DriverMemory:    NewMemoryBackend(ctx, WithDefaultTTL(time.Minute)),
		DriverNull:      NewNullBackend(ctx),
		DriverFile:      NewFileBackend(ctx, t.TempDir()),
		DriverRedis:     NewRedisBackend(ctx, newStubRedisClient(), WithPrefix("videos")),
		DriverMemcached: NewMemcachedBackend(ctx, []string{"127.0.0.1:1"}),
		DriverSQL:       NewSQLBackend(ctx, "sqlite", filepath.Join(t.TempDir(), "c.db")),
		DriverDynamo:    NewDynamoBackend(ctx, WithDynamoClient(newStubDynamoClient())),
		DriverNATS:      NewNATSBackend(ctx, newStubNATSKeyValue("b")),
	}
	for driver, b := range cases {
		if b.Driver() != driver {
			t.Fatalf("expected %s, got %s", driver, b.Driver())
		}
		if _, ok := b.(*errorBackend); ok {
			t.Fatalf("expected %s to construct without error", driver)
		}
	}
}
