package infra

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// A graceful Shutdown must surface as http.ErrServerClosed from Start so
// callers can tell a clean stop from a real listener failure.
func TestHTTPServerShutdownReturnsErrServerClosed(t *testing.T) {
	cfg := &Config{
		Port:             "0",
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
	}
	srv := NewHTTPServer(cfg, http.NewServeMux())

	started := make(chan error, 1)
	go func() {
		started <- srv.Start()
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-started:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestHTTPServerZeroValueIsInert(t *testing.T) {
	var srv HTTPServer
	if err := srv.Start(); err != nil {
		t.Fatalf("Start on zero value: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on zero value: %v", err)
	}
}
