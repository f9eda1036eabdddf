package tiertest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goforj/tiercache/tiercore"
)

// Options configures shared backend contract checks.
type Options struct {
	// CaseName namespaces keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss.
	NullSemantics bool
	// SkipCloneCheck disables the check that mutating a returned value leaves
	// the stored value intact.
	SkipCloneCheck bool
	// SkipTTL disables the expiry check for backends with coarse TTLs.
	SkipTTL bool
	// TTL is the lifetime used by the expiry check. Defaults to 50ms.
	TTL time.Duration
	// TTLWait bounds how long the expiry check polls. Defaults to 120ms.
	TTLWait time.Duration
}

// Backend is the contract exercised by RunBackendContract.
type Backend = tiercore.Backend

type contract struct {
	backend Backend
	opts    Options
	ns      string
}

// RunBackendContract runs the backend-agnostic contract as subtests of t.
func RunBackendContract(t *testing.T, backend Backend, opts Options) {
	t.Helper()
	if opts.CaseName == "" {
		opts.CaseName = t.Name()
	}
	if opts.TTL <= 0 {
		opts.TTL = 50 * time.Millisecond
	}
	if opts.TTLWait <= 0 {
		opts.TTLWait = 120 * time.Millisecond
	}
	if backend.Driver() == "" {
		t.Fatalf("expected backend to report a driver")
	}

	c := &contract{
		backend: backend,
		opts:    opts,
		ns:      strings.NewReplacer("/", "_", " ", "_").Replace(opts.CaseName),
	}
	t.Run("round_trip", c.roundTrip)
	t.Run("overwrite", c.overwrite)
	t.Run("binary_values", c.binaryValues)
	t.Run("miss", c.miss)
	if !opts.SkipTTL {
		t.Run("ttl", c.ttl)
	}
	t.Run("delete", c.delete)
}

func (c *contract) key(s string) string { return c.ns + ":" + s }

// expect asserts a read of key yields want, or a miss under null semantics.
func (c *contract) expect(t *testing.T, key string, want []byte) []byte {
	t.Helper()
	body, ok, err := c.backend.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %q failed: %v", key, err)
	}
	if c.opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics, got %q", body)
		}
		return nil
	}
	if !ok || !bytes.Equal(body, want) {
		t.Fatalf("get %q: ok=%v body=%q, want %q", key, ok, body, want)
	}
	return body
}

func (c *contract) set(t *testing.T, key string, value []byte, ttl time.Duration) {
	t.Helper()
	if err := c.backend.Set(context.Background(), key, value, ttl); err != nil {
		t.Fatalf("set %q failed: %v", key, err)
	}
}

func (c *contract) roundTrip(t *testing.T) {
	c.set(t, c.key("alpha"), []byte("value"), time.Minute)
	body := c.expect(t, c.key("alpha"), []byte("value"))
	if body == nil || c.opts.SkipCloneCheck {
		return
	}
	body[0] = 'X'
	c.expect(t, c.key("alpha"), []byte("value"))
}

func (c *contract) overwrite(t *testing.T) {
	c.set(t, c.key("beta"), []byte("first"), time.Minute)
	c.set(t, c.key("beta"), []byte("second"), time.Minute)
	c.expect(t, c.key("beta"), []byte("second"))
}

func (c *contract) binaryValues(t *testing.T) {
	value := []byte{0x00, 0xff, '\n', ' ', 0x7f, 0x00}
	c.set(t, c.key("binary"), value, time.Minute)
	c.expect(t, c.key("binary"), value)
}

func (c *contract) miss(t *testing.T) {
	if _, ok, err := c.backend.Get(context.Background(), c.key("missing")); err != nil || ok {
		t.Fatalf("expected miss; ok=%v err=%v", ok, err)
	}
}

func (c *contract) ttl(t *testing.T) {
	c.set(t, c.key("ttl"), []byte("v"), c.opts.TTL)
	deadline := time.Now().Add(c.opts.TTLWait)
	for {
		_, ok, err := c.backend.Get(context.Background(), c.key("ttl"))
		if err != nil {
			t.Fatalf("get during ttl wait failed: %v", err)
		}
		if !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("key still present %s after a %s ttl", c.opts.TTLWait, c.opts.TTL)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (c *contract) delete(t *testing.T) {
	ctx := context.Background()
	c.set(t, c.key("gamma"), []byte("1"), time.Minute)
	if err := c.backend.Delete(ctx, c.key("gamma")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := c.backend.Get(ctx, c.key("gamma")); err != nil || ok {
		t.Fatalf("expected deleted key to miss; ok=%v err=%v", ok, err)
	}
	if err := c.backend.Delete(ctx, c.key("never")); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}
}
