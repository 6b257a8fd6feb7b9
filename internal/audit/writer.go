package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const drainTimeout = 5 * time.Second

// Writer moves records to a Repository on its own goroutine so callers
// never wait on storage.
type Writer struct {
	repo    Repository
	records chan Record
	log     *slog.Logger

	dropped atomic.Uint64
}

func NewWriter(repo Repository, buffer int, log *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		repo:    repo,
		records: make(chan Record, buffer),
		log:     log,
	}
}

// Submit queues rec and reports false when the buffer is full.
func (w *Writer) Submit(rec Record) bool {
	select {
	case w.records <- rec:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Run writes records until ctx is done, then flushes what is buffered.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case rec := <-w.records:
			w.write(ctx, rec)
		}
	}
}

func (w *Writer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-w.records:
			w.write(ctx, rec)
		default:
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, rec Record) {
	if err := w.repo.Insert(ctx, rec); err != nil {
		w.log.Warn("audit insert failed",
			"kind", rec.Kind,
			"participant", rec.ParticipantID,
			"err", err)
	}
}
