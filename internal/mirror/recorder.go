// Package mirror keeps a best-effort copy of generation records in a second,
// independent store. Mirror writes are advisory: they run off the request
// path, their failures are logged and swallowed, and the two stores are
// correlated by record identifier only, never transactionally.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Recorder writes a read-only copy of a terminal generation record.
type Recorder interface {
	Record(ctx context.Context, rec *domain.GenerationRecord) error
}

// AsyncRecorder dispatches mirror writes through a buffered queue so the
// caller never waits on the secondary store. A full queue drops the write
// (logged) rather than blocking the response path.
type AsyncRecorder struct {
	recorder Recorder
	logger   zerolog.Logger
	timeout  time.Duration

	queue chan *domain.GenerationRecord
	done  chan struct{}
	once  sync.Once
}

// NewAsyncRecorder starts the drain goroutine. queueSize <= 0 falls back to a
// small default buffer.
func NewAsyncRecorder(recorder Recorder, logger zerolog.Logger, queueSize int, timeout time.Duration) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a := &AsyncRecorder{
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
		queue:    make(chan *domain.GenerationRecord, queueSize),
		done:     make(chan struct{}),
	}
	go a.drain()
	return a
}

// Enqueue hands off a record copy for mirroring and returns immediately.
func (a *AsyncRecorder) Enqueue(rec *domain.GenerationRecord) {
	if a == nil || rec == nil {
		return
	}
	copied := *rec
	select {
	case a.queue <- &copied:
	default:
		a.logger.Warn().Str("generation_id", rec.ID).Msg("mirror: queue full, dropping record")
	}
}

// Close stops accepting records and waits until the queue is drained.
func (a *AsyncRecorder) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		close(a.queue)
		<-a.done
	})
}

func (a *AsyncRecorder) drain() {
	defer close(a.done)
	for rec := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.recorder.Record(ctx, rec); err != nil {
			a.logger.Warn().Err(err).Str("generation_id", rec.ID).Msg("mirror: secondary write failed")
		}
		cancel()
	}
}
