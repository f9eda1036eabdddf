package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "tiercache")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "http://127.0.0.1:4318", "tiercache")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
