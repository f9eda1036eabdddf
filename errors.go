package tiercache

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// LocalErrorKind classifies a local tier failure.
type LocalErrorKind int

const (
	// LocalLookupFailed means the lookup failed or its result is indeterminate.
	LocalLookupFailed LocalErrorKind = iota + 1
	LocalUnknown
)

func (k LocalErrorKind) String() string {
	switch k {
	case LocalLookupFailed:
		return "lookup_failed"
	case LocalUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("local_kind(%d)", int(k))
	}
}

// RemoteErrorKind classifies a remote tier failure.
type RemoteErrorKind int

const (
	RemoteUnknown RemoteErrorKind = iota + 1
	RemoteNotFound
	RemoteTimeout
	RemoteTransport
)

func (k RemoteErrorKind) String() string {
	switch k {
	case RemoteUnknown:
		return "unknown"
	case RemoteNotFound:
		return "not_found"
	case RemoteTimeout:
		return "timeout"
	case RemoteTransport:
		return "transport"
	default:
		return fmt.Sprintf("remote_kind(%d)", int(k))
	}
}

var (
	ErrLocalLookupFailed = &LocalError{Kind: LocalLookupFailed}
	ErrLocalUnknown      = &LocalError{Kind: LocalUnknown}

	ErrRemoteUnknown   = &RemoteError{Kind: RemoteUnknown}
	ErrRemoteNotFound  = &RemoteError{Kind: RemoteNotFound}
	ErrRemoteTimeout   = &RemoteError{Kind: RemoteTimeout}
	ErrRemoteTransport = &RemoteError{Kind: RemoteTransport}
)

// LocalError is a failure reported by a LocalStore lookup.
type LocalError struct {
	Kind LocalErrorKind
	Err  error
}

func (e *LocalError) Error() string {
	if e.Err == nil {
		return "tiercache: local store " + e.Kind.String()
	}
	var inner *LocalError
	if errors.As(e.Err, &inner) {
		return e.Err.Error()
	}
	return "tiercache: local store " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *LocalError) Unwrap() error { return e.Err }

// Is matches another *LocalError by kind.
func (e *LocalError) Is(target error) bool {
	t, ok := target.(*LocalError)
	return ok && t.Kind == e.Kind
}

// RemoteError is a failure reported by a RemoteStore.
type RemoteError struct {
	Kind RemoteErrorKind
	Err  error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return "tiercache: remote store " + e.Kind.String()
	}
	var inner *RemoteError
	if errors.As(e.Err, &inner) {
		return e.Err.Error()
	}
	return "tiercache: remote store " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is matches another *RemoteError by kind.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	return ok && t.Kind == e.Kind
}

// Error is returned by CacheBackedStore.Fetch. Tier records which store
// failed; Err is the *LocalError or *RemoteError it reported.
type Error struct {
	Tier Tier
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tiercache: %s tier: %v", e.Tier, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewLocalError wraps err as a local failure of kind.
func NewLocalError(kind LocalErrorKind, err error) *LocalError {
	return &LocalError{Kind: kind, Err: err}
}

// NewRemoteError wraps err as a remote failure of kind.
func NewRemoteError(kind RemoteErrorKind, err error) *RemoteError {
	return &RemoteError{Kind: kind, Err: err}
}

// AsLocalError returns err as a *LocalError, wrapping untyped errors as
// LocalUnknown. A *LocalError nested under other wrapping lends its kind and
// the full chain is kept as Err.
func AsLocalError(err error) *LocalError {
	var le *LocalError
	if errors.As(err, &le) {
		if le == err {
			return le
		}
		return &LocalError{Kind: le.Kind, Err: err}
	}
	return &LocalError{Kind: LocalUnknown, Err: err}
}

// AsRemoteError returns err as a *RemoteError, wrapping untyped errors as
// RemoteUnknown. Nested *RemoteErrors are handled as in AsLocalError.
func AsRemoteError(err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		return nestedRemote(err, re)
	}
	return &RemoteError{Kind: RemoteUnknown, Err: err}
}

func nestedRemote(err error, re *RemoteError) *RemoteError {
	if re == err {
		return re
	}
	return &RemoteError{Kind: re.Kind, Err: err}
}

// ClassifyRemote maps a transport-level error to a *RemoteError.
func ClassifyRemote(err error) *RemoteError {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return nestedRemote(err, re)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: RemoteTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &RemoteError{Kind: RemoteTimeout, Err: err}
		}
		return &RemoteError{Kind: RemoteTransport, Err: err}
	}
	return &RemoteError{Kind: RemoteUnknown, Err: err}
}

// TierOf reports which tier produced err, or "" when err is not an *Error.
func TierOf(err error) Tier {
	var e *Error
	if errors.As(err, &e) {
		return e.Tier
	}
	return ""
}

// IsLocal reports whether err is a local tier failure from Fetch.
func IsLocal(err error) bool { return TierOf(err) == TierLocal }

// IsRemote reports whether err is a remote tier failure from Fetch.
func IsRemote(err error) bool { return TierOf(err) == TierRemote }
