package tiercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/goforj/tiercache/tiercore"
)

var (
	ErrNoKeyFunc = errors.New("tiercache: adapter requires a key func")
	ErrEmptyKey  = errors.New("tiercache: item key is empty")
)

// AdapterConfig controls how a backend is exposed as a typed tier.
type AdapterConfig[T any] struct {
	// Codec encodes items for the backend. Defaults to JSONCodec.
	Codec Codec[T]
	// TTL is passed to backend writes; <= 0 uses the backend default.
	TTL time.Duration
	// Observer receives "persist" events.
	Observer Observer
}

// AdapterOption mutates AdapterConfig.
type AdapterOption[T any] func(AdapterConfig[T]) AdapterConfig[T]

// WithCodec overrides the item codec.
func WithCodec[T any](codec Codec[T]) AdapterOption[T] {
	return func(cfg AdapterConfig[T]) AdapterConfig[T] {
		cfg.Codec = codec
		return cfg
	}
}

// WithTTL sets the TTL used when writing items.
func WithTTL[T any](ttl time.Duration) AdapterOption[T] {
	return func(cfg AdapterConfig[T]) AdapterConfig[T] {
		cfg.TTL = ttl
		return cfg
	}
}

// WithAdapterObserver attaches an observer to the adapter.
func WithAdapterObserver[T any](o Observer) AdapterOption[T] {
	return func(cfg AdapterConfig[T]) AdapterConfig[T] {
		cfg.Observer = o
		return cfg
	}
}

func buildAdapterConfig[T any](opts []AdapterOption[T]) AdapterConfig[T] {
	cfg := AdapterConfig[T]{}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	if !cfg.Codec.valid() {
		cfg.Codec = JSONCodec[T]()
	}
	return cfg
}

func itemKey[T any](key KeyFunc[T], item T) (string, error) {
	if key == nil {
		return "", ErrNoKeyFunc
	}
	k := key(item)
	if k == "" {
		return "", ErrEmptyKey
	}
	return k, nil
}

// BackendLocal exposes a byte backend as a LocalStore.
type BackendLocal[T any] struct {
	backend tiercore.Backend
	key     KeyFunc[T]
	cfg     AdapterConfig[T]
}

var _ LocalStore[struct{}] = (*BackendLocal[struct{}])(nil)

// NewBackendLocal builds a LocalStore over backend. key derives the identifier
// an item is persisted under and must agree with the ids passed to Fetch.
// @group Tiers
//
// Example: memory-backed local tier
//
//	ctx := context.Background()
//	local := tiercache.NewBackendLocal[Video](tiercache.NewMemoryBackend(ctx), func(v Video) string { return v.ID })
//	_, ok, _ := local.Fetch(ctx, "42")
//	fmt.Println(ok) // false
func NewBackendLocal[T any](backend tiercore.Backend, key KeyFunc[T], opts ...AdapterOption[T]) *BackendLocal[T] {
	return &BackendLocal[T]{
		backend: backend,
		key:     key,
		cfg:     buildAdapterConfig(opts),
	}
}

// Backend returns the underlying backend.
func (l *BackendLocal[T]) Backend() tiercore.Backend { return l.backend }

// Fetch looks id up in the backend. A miss is (zero, false, nil); backend and
// decode failures are *LocalError of kind LocalLookupFailed.
func (l *BackendLocal[T]) Fetch(ctx context.Context, id string) (T, bool, error) {
	var zero T
	body, ok, err := l.backend.Get(ctx, id)
	if err != nil {
		return zero, false, NewLocalError(LocalLookupFailed, err)
	}
	if !ok {
		return zero, false, nil
	}
	item, err := l.cfg.Codec.Decode(body)
	if err != nil {
		return zero, false, NewLocalError(LocalLookupFailed, fmt.Errorf("decode %q: %w", id, err))
	}
	return item, true, nil
}

// Persist writes item to the backend. Failures are logged and reported to the
// observer only.
func (l *BackendLocal[T]) Persist(ctx context.Context, item T) {
	start := time.Now()
	key, err := itemKey(l.key, item)
	if err == nil {
		err = l.write(ctx, key, item)
	}
	if err != nil {
		glog.Warningf("tiercache: persist %q to %s backend: %v", key, l.backend.Driver(), err)
	}
	observe(ctx, l.cfg.Observer, "persist", key, err == nil, err, start, TierLocal)
}

func (l *BackendLocal[T]) write(ctx context.Context, key string, item T) error {
	body, err := l.cfg.Codec.Encode(item)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return l.backend.Set(ctx, key, body, l.cfg.TTL)
}

// BackendRemote exposes a byte backend as an authoritative RemoteStore.
type BackendRemote[T any] struct {
	backend tiercore.Backend
	key     KeyFunc[T]
	cfg     AdapterConfig[T]
}

var _ RemoteStore[struct{}] = (*BackendRemote[struct{}])(nil)

// NewBackendRemote builds a RemoteStore over backend. A backend miss is
// reported as RemoteNotFound.
// @group Tiers
func NewBackendRemote[T any](backend tiercore.Backend, key KeyFunc[T], opts ...AdapterOption[T]) *BackendRemote[T] {
	return &BackendRemote[T]{
		backend: backend,
		key:     key,
		cfg:     buildAdapterConfig(opts),
	}
}

// Backend returns the underlying backend.
func (r *BackendRemote[T]) Backend() tiercore.Backend { return r.backend }

// Fetch returns the item for id or a *RemoteError.
func (r *BackendRemote[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	body, ok, err := r.backend.Get(ctx, id)
	if err != nil {
		return zero, ClassifyRemote(err)
	}
	if !ok {
		return zero, NewRemoteError(RemoteNotFound, fmt.Errorf("%s backend has no item %q", r.backend.Driver(), id))
	}
	item, err := r.cfg.Codec.Decode(body)
	if err != nil {
		return zero, NewRemoteError(RemoteUnknown, fmt.Errorf("decode %q: %w", id, err))
	}
	return item, nil
}

// Persist writes item and returns it once the backend acknowledged the write.
func (r *BackendRemote[T]) Persist(ctx context.Context, item T) (T, error) {
	var zero T
	start := time.Now()
	key, err := itemKey(r.key, item)
	if err != nil {
		observe(ctx, r.cfg.Observer, "persist", key, false, err, start, TierRemote)
		return zero, NewRemoteError(RemoteUnknown, err)
	}
	body, err := r.cfg.Codec.Encode(item)
	if err != nil {
		err = NewRemoteError(RemoteUnknown, fmt.Errorf("encode %q: %w", key, err))
		observe(ctx, r.cfg.Observer, "persist", key, false, err, start, TierRemote)
		return zero, err
	}
	if err := r.backend.Set(ctx, key, body, r.cfg.TTL); err != nil {
		rerr := ClassifyRemote(err)
		observe(ctx, r.cfg.Observer, "persist", key, false, rerr, start, TierRemote)
		return zero, rerr
	}
	observe(ctx, r.cfg.Observer, "persist", key, true, nil, start, TierRemote)
	return item, nil
}
