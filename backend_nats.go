package tiercache

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"
)

// natsEnvelopeMarker prefixes values written with a per-entry expiry:
// marker | expiry (unix millis, big endian) | value.
const (
	natsEnvelopeMarker = "TCN1"
	natsEnvelopeLen    = len(natsEnvelopeMarker) + 8
)

var errNATSUnavailable = errors.New("tiercache: nats key-value unavailable")

// NATSKeyValue captures the subset of nats.KeyValue used by the backend.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
}

// natsBackend stores entries in a JetStream key-value bucket. With bucketTTL
// set, values are stored raw and expiry is left to the bucket's MaxAge.
type natsBackend struct {
	kv         NATSKeyValue
	defaultTTL time.Duration
	keyPrefix  string
	bucketTTL  bool
}

func newNATSBackend(kv NATSKeyValue, defaultTTL time.Duration, prefix string, bucketTTL bool) Backend {
	if defaultTTL <= 0 {
		defaultTTL = defaultBackendTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &natsBackend{
		kv:         kv,
		defaultTTL: defaultTTL,
		keyPrefix:  natsToken(prefix) + ".",
		bucketTTL:  bucketTTL,
	}
}

func (b *natsBackend) Driver() Driver { return DriverNATS }

func (b *natsBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := b.ready(ctx); err != nil {
		return nil, false, err
	}
	subject := b.cacheKey(key)
	entry, err := b.kv.Get(subject)
	switch {
	case errors.Is(err, nats.ErrKeyNotFound), errors.Is(err, nats.ErrKeyDeleted):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if op := entry.Operation(); op == nats.KeyValueDelete || op == nats.KeyValuePurge {
		return nil, false, nil
	}

	value := entry.Value()
	if b.bucketTTL {
		return cloneBytes(value), true, nil
	}
	body, expiresAt, wrapped := openNATSEnvelope(value)
	if !wrapped {
		return cloneBytes(value), true, nil
	}
	if time.Now().After(expiresAt) {
		if err := b.kv.Purge(subject); err != nil {
			glog.Warningf("tiercache: purge expired nats key %q: %v", key, err)
		}
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (b *natsBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	body := cloneBytes(value)
	if !b.bucketTTL {
		if ttl <= 0 {
			ttl = b.defaultTTL
		}
		body = sealNATSEnvelope(value, time.Now().Add(ttl))
	}
	_, err := b.kv.Put(b.cacheKey(key), body)
	return err
}

func (b *natsBackend) Delete(ctx context.Context, key string) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	err := b.kv.Delete(b.cacheKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
		return nil
	}
	return err
}

func (b *natsBackend) ready(ctx context.Context) error {
	if b.kv == nil {
		return errNATSUnavailable
	}
	return ctx.Err()
}

func (b *natsBackend) cacheKey(key string) string {
	return b.keyPrefix + natsToken(key)
}

// natsToken maps an arbitrary string onto the key alphabet NATS KV accepts.
func natsToken(s string) string {
	if s == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func sealNATSEnvelope(value []byte, expiresAt time.Time) []byte {
	out := make([]byte, natsEnvelopeLen+len(value))
	copy(out, natsEnvelopeMarker)
	binary.BigEndian.PutUint64(out[len(natsEnvelopeMarker):], uint64(expiresAt.UnixMilli()))
	copy(out[natsEnvelopeLen:], value)
	return out
}

// openNATSEnvelope reports wrapped=false for values written by other producers.
func openNATSEnvelope(raw []byte) (body []byte, expiresAt time.Time, wrapped bool) {
	if len(raw) < natsEnvelopeLen || !bytes.HasPrefix(raw, []byte(natsEnvelopeMarker)) {
		return nil, time.Time{}, false
	}
	ms := int64(binary.BigEndian.Uint64(raw[len(natsEnvelopeMarker):natsEnvelopeLen]))
	return raw[natsEnvelopeLen:], time.UnixMilli(ms), true
}
