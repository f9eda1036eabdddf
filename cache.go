package tiercache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// CacheBackedStore answers fetches from a LocalStore first and falls back to a
// RemoteStore on a local miss, writing the remote item back into the local
// store before returning it.
//
// It holds no mutable state. Concurrency safety of the two stores is their own
// responsibility; concurrent fetches of the same id are not coalesced.
type CacheBackedStore[T any] struct {
	local  LocalStore[T]
	remote RemoteStore[T]
	opts   settings
}

// Result is the outcome of one asynchronous fetch.
type Result[T any] struct {
	Item T
	Err  error
}

// New composes a read-through store from a local and a remote tier sharing the
// item type T. Neither store is owned by the returned value.
// @group Read-through
//
// Example: read-through over two backends
//
//	ctx := context.Background()
//	local := tiercache.NewBackendLocal[Video](tiercache.NewMemoryBackend(ctx), videoID)
//	remote := tiercache.NewBackendRemote[Video](origin, videoID)
//	videos := tiercache.New[Video](local, remote)
//	v, err := videos.Fetch(ctx, "42")
func New[T any](local LocalStore[T], remote RemoteStore[T], opts ...Option) *CacheBackedStore[T] {
	s := defaultSettings()
	for _, opt := range opts {
		s = opt(s)
	}
	return &CacheBackedStore[T]{
		local:  local,
		remote: remote,
		opts:   s,
	}
}

// Local returns the local tier.
func (s *CacheBackedStore[T]) Local() LocalStore[T] { return s.local }

// Remote returns the remote tier.
func (s *CacheBackedStore[T]) Remote() RemoteStore[T] { return s.remote }

// Fetch returns the item for id.
//
// A local hit is returned without touching the remote tier. A local miss
// issues exactly one remote fetch; on success the item is handed to the local
// store's Persist before Fetch returns, and the outcome of that write-back
// never affects the result. Failures come back as *Error tagged with the tier
// that failed. A local error is surfaced, never bypassed.
func (s *CacheBackedStore[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	start := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, "tiercache.Fetch", trace.WithAttributes(attrID.String(id)))
	defer span.End()

	item, ok, err := s.fetchLocal(ctx, id)
	if err != nil {
		return zero, s.fail(ctx, span, id, &Error{Tier: TierLocal, Err: AsLocalError(err)}, start)
	}
	if ok {
		spanHit(span, TierLocal)
		observe(ctx, s.opts.observer, "fetch", id, true, nil, start, TierLocal)
		return item, nil
	}

	item, err = s.fetchRemote(ctx, id)
	if err != nil {
		return zero, s.fail(ctx, span, id, &Error{Tier: TierRemote, Err: AsRemoteError(err)}, start)
	}

	persistCtx := ctx
	if s.opts.detachPersist {
		persistCtx = context.WithoutCancel(ctx)
	}
	s.local.Persist(persistCtx, item)

	spanHit(span, TierRemote)
	observe(ctx, s.opts.observer, "fetch", id, false, nil, start, TierRemote)
	return item, nil
}

// FetchAsync runs Fetch on its own goroutine. The returned channel yields
// exactly one Result and is then closed.
func (s *CacheBackedStore[T]) FetchAsync(ctx context.Context, id string) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		item, err := s.Fetch(ctx, id)
		out <- Result[T]{Item: item, Err: err}
	}()
	return out
}

// FetchFunc runs Fetch on its own goroutine and calls done exactly once with
// the outcome. A nil done discards the result.
func (s *CacheBackedStore[T]) FetchFunc(ctx context.Context, id string, done func(T, error)) {
	go func() {
		item, err := s.Fetch(ctx, id)
		if done != nil {
			done(item, err)
		}
	}()
}

func (s *CacheBackedStore[T]) fetchLocal(ctx context.Context, id string) (T, bool, error) {
	start := time.Now()
	item, ok, err := s.local.Fetch(ctx, id)
	observe(ctx, s.opts.observer, "local_fetch", id, ok && err == nil, err, start, TierLocal)
	return item, ok, err
}

func (s *CacheBackedStore[T]) fetchRemote(ctx context.Context, id string) (T, error) {
	start := time.Now()
	item, err := s.remote.Fetch(ctx, id)
	observe(ctx, s.opts.observer, "remote_fetch", id, err == nil, err, start, TierRemote)
	return item, err
}

func (s *CacheBackedStore[T]) fail(ctx context.Context, span trace.Span, id string, err *Error, start time.Time) error {
	spanFail(span, err)
	observe(ctx, s.opts.observer, "fetch", id, false, err, start, err.Tier)
	return err
}
