package events

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"stargate/internal/domain"
	"stargate/internal/metrics"
)

const DefaultQueueSize = 256

type QueueOptions struct {
	Size        int
	Environment string
	MachineName string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
	// WriteTimeout bounds each audit_log insert. Defaults to 5s.
	WriteTimeout time.Duration
}

// Queue records audit entries without blocking the caller. Entries are
// written by a single background goroutine; a full queue drops the entry.
type Queue struct {
	writer  Writer
	opts    QueueOptions
	log     *slog.Logger
	entries chan domain.AuditEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewQueue(w Writer, opts QueueOptions) *Queue {
	if opts.Size <= 0 {
		opts.Size = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.MachineName == "" {
		opts.MachineName, _ = os.Hostname()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if w.Now == nil {
		w.Now = opts.Now
	}
	q := &Queue{
		writer:  w,
		opts:    opts,
		log:     log.With("component", "audit"),
		entries: make(chan domain.AuditEntry, opts.Size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Record stamps the entry and enqueues it. It never blocks and never fails.
func (q *Queue) Record(ctx context.Context, e domain.AuditEntry) {
	if e.Timestamp == "" {
		e.Timestamp = q.opts.Now().UTC().Format(TimeLayout)
	}
	if e.RequestID == "" {
		e.RequestID = RequestID(ctx)
	}
	if e.MachineName == "" {
		e.MachineName = q.opts.MachineName
	}
	if e.Environment == "" {
		e.Environment = q.opts.Environment
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(e, "closed")
		return
	}
	select {
	case q.entries <- e:
	default:
		q.drop(e, "full")
	}
}

func (q *Queue) drop(e domain.AuditEntry, reason string) {
	q.opts.Metrics.AuditDropped()
	q.log.Warn("audit entry dropped", "reason", reason, "source", e.Source, "message", e.Message, "request_id", e.RequestID)
}

func (q *Queue) run() {
	defer close(q.done)
	for e := range q.entries {
		q.write(e)
	}
}

func (q *Queue) write(e domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.WriteTimeout)
	defer cancel()
	q.mirror(e)
	if err := q.writer.Append(ctx, e); err != nil {
		q.log.Error("audit write failed", "err", err, "source", e.Source, "message", e.Message)
		return
	}
	q.opts.Metrics.AuditWritten()
}

func (q *Queue) mirror(e domain.AuditEntry) {
	attrs := []any{"source", e.Source, "method", e.Method, "request_id", e.RequestID}
	if e.Error != "" {
		attrs = append(attrs, "error", e.Error)
	}
	if e.Payload != "" {
		attrs = append(attrs, "payload", e.Payload)
	}
	q.log.Log(context.Background(), slogLevel(e.Level), e.Message, attrs...)
}

func slogLevel(level string) slog.Level {
	switch level {
	case domain.LevelDebug:
		return slog.LevelDebug
	case domain.LevelWarn:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close stops accepting entries and waits for queued ones to be written,
// or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.entries)
	}
	q.mu.Unlock()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, domain.AuditEntry) {}
