package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tribune/internal/logger"
	"tribune/internal/models"
)

// RecorderConfig tunes the buffered write path.
type RecorderConfig struct {
	// QueueCapacity bounds the in-process buffer between producers and the
	// persistence worker. Events past capacity are dropped and counted.
	QueueCapacity int
	// WriteTimeout bounds each store write, on both paths.
	WriteTimeout time.Duration
	// DrainTimeout bounds the best-effort drain during Stop.
	DrainTimeout time.Duration
}

func (c *RecorderConfig) defaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 2048
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
}

// Recorder owns the bounded ingestion queue and its single persistence
// worker, plus the synchronous fallback path. Audit writes must never become
// the reason a business operation fails: Enqueue cannot block or error, and
// LogSync swallows store failures after recording them to diagnostics.
//
// Construct one per process, Start it once, and pass it by handle to
// producers. Tests swap the Store for a synchronous double instead.
type Recorder struct {
	store Store
	cfg   RecorderConfig

	ch        chan models.AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder creates a stopped Recorder. Call Start before enqueueing.
func NewRecorder(store Store, cfg RecorderConfig) *Recorder {
	cfg.defaults()
	return &Recorder{
		store: store,
		cfg:   cfg,
		ch:    make(chan models.AuditEvent, cfg.QueueCapacity),
		done:  make(chan struct{}),
	}
}

// Start launches the persistence worker. Call it once at process init.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop drains the queue best-effort within the configured bound and stops
// the worker. Safe to call more than once.
func (r *Recorder) Stop() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}

// Enqueue hands an event to the background worker. It never blocks and never
// returns an error: when the queue is full the event is dropped and the drop
// counter incremented. After Stop it is a no-op.
func (r *Recorder) Enqueue(event models.AuditEvent) {
	if r.closed.Load() {
		return
	}
	select {
	case r.ch <- event:
	default:
		r.dropped.Add(1)
	}
}

// LogSync persists on the caller's own goroutine, for events that must not
// ride the lossy queue. It returns only after the write completed or failed;
// failures are logged and counted, never returned.
func (r *Recorder) LogSync(ctx context.Context, event models.AuditEvent) {
	writeCtx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.store.Append(writeCtx, &event); err != nil {
		r.failed.Add(1)
		logger.Get().Errorw("audit sync write failed",
			"error", err,
			"action", event.Action.String(),
			"resource_type", event.ResourceType.String(),
			"resource_id", event.ResourceID,
		)
	}
}

// Dropped returns how many events overflowed the queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Failed returns how many store writes were absorbed as failures.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// run is the single consumer: FIFO drain, one bounded write per event,
// failures absorbed so the worker outlives any store outage.
func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.ch:
			r.persist(event)
		case <-r.done:
			r.drain()
			return
		}
	}
}

// drain consumes whatever is already buffered until the queue is empty or
// the drain bound elapses.
func (r *Recorder) drain() {
	deadline := time.NewTimer(r.cfg.DrainTimeout)
	defer deadline.Stop()

	for {
		select {
		case event := <-r.ch:
			r.persist(event)
		case <-deadline.C:
			return
		default:
			return
		}
	}
}

func (r *Recorder) persist(event models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.store.Append(ctx, &event); err != nil {
		r.failed.Add(1)
		logger.Get().Errorw("audit write failed",
			"error", err,
			"action", event.Action.String(),
			"resource_type", event.ResourceType.String(),
			"resource_id", event.ResourceID,
		)
	}
}
