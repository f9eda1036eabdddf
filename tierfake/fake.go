package tierfake

import (
	"context"
	"sync"
	"testing"

	"github.com/goforj/tiercache"
)

// Op identifies a tier operation for assertions.
type Op string

const (
	OpFetch   Op = "fetch"
	OpPersist Op = "persist"
)

// counter records calls per op and key.
type counter struct {
	mu     sync.Mutex
	counts map[Op]map[string]int
}

func (c *counter) record(op Op, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Op]map[string]int)
	}
	if c.counts[op] == nil {
		c.counts[op] = make(map[string]int)
	}
	c.counts[op][key]++
}

// Count returns calls for op+key.
func (c *counter) Count(op Op, key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op][key]
}

// Total returns total calls for an op across keys.
func (c *counter) Total(op Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum int
	for _, v := range c.counts[op] {
		sum += v
	}
	return sum
}

// Reset clears recorded counts.
func (c *counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = nil
}

// AssertCalled verifies key was touched by op the expected number of times.
func (c *counter) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := c.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (c *counter) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := c.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (c *counter) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := c.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Local is a recording LocalStore held in memory.
type Local[T any] struct {
	counter

	key       tiercache.KeyFunc[T]
	mu        sync.Mutex
	items     map[string]T
	err       error
	persisted []T
}

var _ tiercache.LocalStore[struct{}] = (*Local[struct{}])(nil)

// NewLocal creates an empty local tier. key addresses persisted items; a nil
// key records persists without storing them.
func NewLocal[T any](key tiercache.KeyFunc[T]) *Local[T] {
	return &Local[T]{key: key, items: make(map[string]T)}
}

// Put seeds an item without recording a call.
func (l *Local[T]) Put(id string, item T) *Local[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[id] = item
	return l
}

// FailWith makes every Fetch return err. A nil err restores normal lookups.
func (l *Local[T]) FailWith(err error) *Local[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	return l
}

// Fetch implements tiercache.LocalStore.
func (l *Local[T]) Fetch(_ context.Context, id string) (T, bool, error) {
	l.record(OpFetch, id)
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	if l.err != nil {
		return zero, false, l.err
	}
	item, ok := l.items[id]
	return item, ok, nil
}

// Persist implements tiercache.LocalStore.
func (l *Local[T]) Persist(_ context.Context, item T) {
	var key string
	if l.key != nil {
		key = l.key(item)
	}
	l.record(OpPersist, key)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persisted = append(l.persisted, item)
	if l.key != nil {
		l.items[key] = item
	}
}

// Persisted returns the items handed to Persist, in call order.
func (l *Local[T]) Persisted() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.persisted...)
}

// Remote is a recording RemoteStore held in memory. Unknown ids fail with
// tiercache.ErrRemoteNotFound.
type Remote[T any] struct {
	counter

	key   tiercache.KeyFunc[T]
	mu    sync.Mutex
	items map[string]T
	errs  map[string]error
	err   error
}

var _ tiercache.RemoteStore[struct{}] = (*Remote[struct{}])(nil)

// NewRemote creates an empty remote tier.
func NewRemote[T any](key tiercache.KeyFunc[T]) *Remote[T] {
	return &Remote[T]{
		key:   key,
		items: make(map[string]T),
		errs:  make(map[string]error),
	}
}

// Put seeds an item without recording a call.
func (r *Remote[T]) Put(id string, item T) *Remote[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = item
	return r
}

// FailWith makes every Fetch return err.
func (r *Remote[T]) FailWith(err error) *Remote[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// FailID makes Fetch of id return err.
func (r *Remote[T]) FailID(id string, err error) *Remote[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[id] = err
	return r
}

// Fetch implements tiercache.RemoteStore.
func (r *Remote[T]) Fetch(_ context.Context, id string) (T, error) {
	r.record(OpFetch, id)
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if r.err != nil {
		return zero, r.err
	}
	if err, ok := r.errs[id]; ok {
		return zero, err
	}
	item, ok := r.items[id]
	if !ok {
		return zero, tiercache.NewRemoteError(tiercache.RemoteNotFound, nil)
	}
	return item, nil
}

// Persist implements tiercache.RemoteStore.
func (r *Remote[T]) Persist(_ context.Context, item T) (T, error) {
	var key string
	if r.key != nil {
		key = r.key(item)
	}
	r.record(OpPersist, key)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = item
	return item, nil
}

// Unreachable is a RemoteStore that fails the test on any call. Use it to
// prove a code path never consults the remote tier.
type Unreachable[T any] struct {
	TB testing.TB
}

var _ tiercache.RemoteStore[struct{}] = Unreachable[struct{}]{}

// Fetch implements tiercache.RemoteStore.
func (u Unreachable[T]) Fetch(_ context.Context, id string) (T, error) {
	u.TB.Helper()
	u.TB.Errorf("unexpected remote fetch of %q", id)
	var zero T
	return zero, tiercache.NewRemoteError(tiercache.RemoteUnknown, nil)
}

// Persist implements tiercache.RemoteStore.
func (u Unreachable[T]) Persist(_ context.Context, item T) (T, error) {
	u.TB.Helper()
	u.TB.Errorf("unexpected remote persist")
	return item, nil
}
