package tiercache

import (
	"context"
	"time"
)

// Observer receives events for tier operations.
//
// CacheBackedStore emits "local_fetch", "remote_fetch" and "fetch"; the backend
// adapters emit "persist". hit is true when the operation produced an item; tier names
// the store the event concerns.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, tier Tier)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, tier Tier)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, tier Tier) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, tier)
}

func observe(ctx context.Context, o Observer, op, key string, hit bool, err error, start time.Time, tier Tier) {
	if o == nil {
		return
	}
	o.OnCacheOp(ctx, op, key, hit, err, time.Since(start), tier)
}
