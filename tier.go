package tiercache

import "context"

// Tier names one of the two store roles.
type Tier string

const (
	TierLocal  Tier = "local"
	TierRemote Tier = "remote"
)

// LocalStore is a cache tier that may or may not hold an item.
//
// Fetch reports "not found" as (zero, false, nil); a non-nil error means the
// lookup could not be performed. Persist is best-effort: it has no error
// channel and callers never observe its outcome.
type LocalStore[T any] interface {
	Fetch(ctx context.Context, id string) (T, bool, error)
	Persist(ctx context.Context, item T)
}

// RemoteStore is the authoritative tier. Fetch either returns the item or a
// failure, usually a *RemoteError; absence is one such failure.
//
// Persist is an acknowledged write. The read path never calls it.
type RemoteStore[T any] interface {
	Fetch(ctx context.Context, id string) (T, error)
	Persist(ctx context.Context, item T) (T, error)
}

// KeyFunc returns the identifier an item is addressed by.
type KeyFunc[T any] func(T) string
