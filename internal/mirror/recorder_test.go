package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type captureRecorder struct {
	mu      sync.Mutex
	records []*domain.GenerationRecord
	err     error
}

func (c *captureRecorder) Record(ctx context.Context, rec *domain.GenerationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func TestAsyncRecorderDrainsOnClose(t *testing.T) {
	capture := &captureRecorder{}
	a := NewAsyncRecorder(capture, zerolog.Nop(), 8, time.Second)

	for i := 0; i < 5; i++ {
		a.Enqueue(domain.NewGenerationRecord("a.png", 1, "png"))
	}
	a.Close()

	if got := capture.count(); got != 5 {
		t.Fatalf("expected 5 mirrored records, got %d", got)
	}
}

func TestAsyncRecorderSwallowsFailures(t *testing.T) {
	capture := &captureRecorder{err: errors.New("redis down")}
	a := NewAsyncRecorder(capture, zerolog.Nop(), 8, time.Second)

	rec := domain.NewGenerationRecord("a.png", 1, "png")
	a.Enqueue(rec) // must not panic or propagate
	a.Close()

	if got := capture.count(); got != 1 {
		t.Fatalf("expected the failing write to have been attempted once, got %d", got)
	}
}

func TestAsyncRecorderCopiesRecord(t *testing.T) {
	capture := &captureRecorder{}
	a := NewAsyncRecorder(capture, zerolog.Nop(), 8, time.Second)

	rec := domain.NewGenerationRecord("a.png", 1, "png")
	a.Enqueue(rec)
	rec.OriginalFilename = "mutated-after-enqueue.png"
	a.Close()

	if got := capture.records[0].OriginalFilename; got != "a.png" {
		t.Fatalf("mirror must receive a read-only copy, got filename %q", got)
	}
}

func TestAsyncRecorderDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	slow := recorderFunc(func(ctx context.Context, rec *domain.GenerationRecord) error {
		<-block
		return nil
	})
	a := NewAsyncRecorder(slow, zerolog.Nop(), 1, time.Second)

	// First record occupies the drain goroutine, second fills the buffer,
	// third must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			a.Enqueue(domain.NewGenerationRecord("a.png", 1, "png"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	close(block)
	a.Close()
}

type recorderFunc func(ctx context.Context, rec *domain.GenerationRecord) error

func (f recorderFunc) Record(ctx context.Context, rec *domain.GenerationRecord) error {
	return f(ctx, rec)
}
