package tiercache

import (
	"context"
	"time"
)

type nullBackend struct{}

func newNullBackend() Backend { return &nullBackend{} }

func (b *nullBackend) Driver() Driver { return DriverNull }

func (b *nullBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (b *nullBackend) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (b *nullBackend) Delete(context.Context, string) error { return nil }
