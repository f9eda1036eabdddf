package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"
	"github.com/olivere/elastic/v7"
	"github.com/redis/go-redis/v9"

	"github.com/goforj/tiercache"
	"github.com/goforj/tiercache/internal/config"
)

// Document is the item type served by the command: one JSON object whose
// IDField member is its identifier.
type Document = map[string]any

// documentKey reads field from a document. Numbers are formatted without
// exponent so ids such as 42 round-trip as "42".
func documentKey(field string) tiercache.KeyFunc[Document] {
	return func(doc Document) string {
		switch v := doc[field].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
}

type resources struct {
	closers []func()
}

func (r *resources) add(fn func()) { r.closers = append(r.closers, fn) }

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildStore wires the configured local and remote tiers. The returned
// resources own any connections opened along the way.
func buildStore(ctx context.Context, cfg config.Config) (*tiercache.CacheBackedStore[Document], *resources, error) {
	res := &resources{}
	key := documentKey(cfg.IDField)
	obs := tiercache.ObserverFunc(logOp)

	localBackend, err := buildBackend(ctx, cfg, tiercache.Driver(cfg.LocalDriver), cfg.Prefix, res)
	if err != nil {
		res.Close()
		return nil, nil, fmt.Errorf("local tier: %w", err)
	}
	local := tiercache.NewBackendLocal[Document](localBackend, key,
		tiercache.WithTTL[Document](cfg.TTL),
		tiercache.WithAdapterObserver[Document](obs),
	)

	remote, err := buildRemote(ctx, cfg, key, obs, res)
	if err != nil {
		res.Close()
		return nil, nil, fmt.Errorf("remote tier: %w", err)
	}
	return tiercache.New[Document](local, remote, tiercache.WithObserver(obs)), res, nil
}

func buildRemote(ctx context.Context, cfg config.Config, key tiercache.KeyFunc[Document], obs tiercache.Observer, res *resources) (tiercache.RemoteStore[Document], error) {
	switch cfg.RemoteKind {
	case config.RemoteHTTP:
		return tiercache.NewHTTPRemote[Document](cfg.RemoteHTTPURL, key,
			tiercache.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout}),
			tiercache.WithHTTPObserver(obs),
		), nil
	case config.RemoteElastic:
		client, err := elastic.NewClient(
			elastic.SetURL(cfg.ElasticURL),
			elastic.SetSniff(cfg.ElasticSniff),
			elastic.SetHealthcheckTimeoutStartup(cfg.RemoteTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("connect elasticsearch: %w", err)
		}
		res.add(client.Stop)
		return tiercache.NewElasticRemote[Document](client, cfg.ElasticIndex, key).WithObserver(obs), nil
	case config.RemoteBackend:
		backend, err := buildBackend(ctx, cfg, tiercache.Driver(cfg.RemoteDriver), cfg.Prefix+"-origin", res)
		if err != nil {
			return nil, err
		}
		return tiercache.NewBackendRemote[Document](backend, key,
			tiercache.WithAdapterObserver[Document](obs),
		), nil
	}
	return nil, fmt.Errorf("unknown remote kind %q", cfg.RemoteKind)
}

func buildBackend(ctx context.Context, cfg config.Config, driver tiercache.Driver, prefix string, res *resources) (tiercache.Backend, error) {
	bc := cfg.Backend(driver, prefix)
	switch driver {
	case tiercache.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		res.add(func() {
			if err := client.Close(); err != nil {
				glog.Warningf("tiercache: close redis client: %v", err)
			}
		})
		bc.RedisClient = client
	case tiercache.DriverNATS:
		kv, err := openKeyValue(cfg, res)
		if err != nil {
			return nil, err
		}
		bc.NATSKeyValue = kv
	}
	return tiercache.NewBackend(ctx, bc)
}

func openKeyValue(cfg config.Config, res *resources) (nats.KeyValue, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("tiercache"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	res.add(nc.Close)
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(cfg.NATSBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.NATSBucket})
	}
	if err != nil {
		return nil, fmt.Errorf("key-value bucket %q: %w", cfg.NATSBucket, err)
	}
	return kv, nil
}

func logOp(_ context.Context, op, key string, hit bool, err error, dur time.Duration, tier tiercache.Tier) {
	if err != nil {
		if glog.V(1) {
			glog.Infof("tiercache op=%s tier=%s key=%q dur=%s err=%v", op, tier, key, dur, err)
		}
		return
	}
	if glog.V(2) {
		glog.Infof("tiercache op=%s tier=%s key=%q hit=%t dur=%s", op, tier, key, hit, dur)
	}
}
