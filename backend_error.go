package tiercache

import (
	"context"
	"time"
)

// errorBackend is returned when a driver fails to initialize; it preserves the driver
// identity while surfacing the construction error on every call.
type errorBackend struct {
	driver Driver
	err    error
}

func (e *errorBackend) Driver() Driver                                  { return e.driver }
func (e *errorBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, e.err }
func (e *errorBackend) Set(context.Context, string, []byte, time.Duration) error {
	return e.err
}
func (e *errorBackend) Delete(context.Context, string) error { return e.err }
