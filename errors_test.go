package tiercache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

type timeoutNetError struct{ timeout bool }

func (e timeoutNetError) Error() string   { return "net failure" }
func (e timeoutNetError) Timeout() bool   { return e.timeout }
func (e timeoutNetError) Temporary() bool { return false }

var _ net.Error = timeoutNetError{}

func TestErrorKindsMatchByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewRemoteError(RemoteTimeout, errors.New("slow")))
	if !errors.Is(err, ErrRemoteTimeout) {
		t.Fatalf("expected timeout kind to match")
	}
	if errors.Is(err, ErrRemoteNotFound) {
		t.Fatalf("did not expect not found kind to match")
	}
	local := NewLocalError(LocalLookupFailed, nil)
	if !errors.Is(local, ErrLocalLookupFailed) || errors.Is(local, ErrLocalUnknown) {
		t.Fatalf("unexpected local kind matching")
	}
	if errors.Is(local, ErrRemoteUnknown) {
		t.Fatalf("local error must not match a remote sentinel")
	}
}

func TestErrorStrings(t *testing.T) {
	if got := NewLocalError(LocalLookupFailed, nil).Error(); got != "tiercache: local store lookup_failed" {
		t.Fatalf("unexpected local message %q", got)
	}
	got := (&Error{Tier: TierRemote, Err: NewRemoteError(RemoteNotFound, errors.New("no row"))}).Error()
	if got != "tiercache: remote tier: tiercache: remote store not_found: no row" {
		t.Fatalf("unexpected orchestrator message %q", got)
	}
	if !strings.Contains(RemoteErrorKind(99).String(), "99") || !strings.Contains(LocalErrorKind(99).String(), "99") {
		t.Fatalf("expected unknown kinds to print their value")
	}
}

func TestErrorUnwrapChain(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Tier: TierLocal, Err: NewLocalError(LocalLookupFailed, cause)}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause reachable through Unwrap")
	}
	if TierOf(err) != TierLocal || TierOf(cause) != "" {
		t.Fatalf("unexpected TierOf results")
	}
}

func TestAsErrorHelpers(t *testing.T) {
	plain := errors.New("plain")
	if le := AsLocalError(plain); le.Kind != LocalUnknown || le.Err != plain {
		t.Fatalf("unexpected wrap: %+v", le)
	}
	typed := NewLocalError(LocalLookupFailed, nil)
	if AsLocalError(typed) != typed {
		t.Fatalf("expected typed local error to pass through")
	}
	if re := AsRemoteError(plain); re.Kind != RemoteUnknown || re.Err != plain {
		t.Fatalf("unexpected wrap: %+v", re)
	}
}

func TestAsErrorHelpersKeepWrapping(t *testing.T) {
	boom := errors.New("boom")
	wrapped := fmt.Errorf("shard 3: %w", NewLocalError(LocalLookupFailed, boom))
	le := AsLocalError(wrapped)
	if le.Kind != LocalLookupFailed || le.Err != wrapped {
		t.Fatalf("expected kind kept and chain preserved, got %+v", le)
	}
	if le.Error() != wrapped.Error() || !errors.Is(le, boom) {
		t.Fatalf("unexpected message %q", le.Error())
	}

	timeout := fmt.Errorf("replica b: %w", NewRemoteError(RemoteTimeout, boom))
	for _, re := range []*RemoteError{AsRemoteError(timeout), ClassifyRemote(timeout)} {
		if re.Kind != RemoteTimeout || re.Err != timeout {
			t.Fatalf("expected kind kept and chain preserved, got %+v", re)
		}
		if !strings.HasPrefix(re.Error(), "replica b: ") {
			t.Fatalf("expected wrapping in message, got %q", re.Error())
		}
	}
}

func TestClassifyRemote(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want RemoteErrorKind
	}{
		{"deadline", context.DeadlineExceeded, RemoteTimeout},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), RemoteTimeout},
		{"net timeout", timeoutNetError{timeout: true}, RemoteTimeout},
		{"net failure", timeoutNetError{}, RemoteTransport},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, RemoteTransport},
		{"typed", NewRemoteError(RemoteNotFound, nil), RemoteNotFound},
		{"other", errors.New("boom"), RemoteUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyRemote(tc.err); got.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Kind)
			}
		})
	}
	if ClassifyRemote(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
