package uplink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"backend-fieldtrack/internal/engine"
	"backend-fieldtrack/internal/ingest"
)

// Publisher delivers one batch of fixes upstream. Implemented by
// RabbitPublisher in production and by fakes in tests.
type Publisher interface {
	Publish(ctx context.Context, batch []ingest.RawPoint) error
}

// Queue is the device-side runtime for one active session: it validates
// fixes as they arrive from the location provider, keeps the advisory
// running total the user sees, and buffers validated points until a flush
// delivers them upstream in bounded batches.
//
// Fixes arrive from a single ordered provider stream, so Enqueue is called
// sequentially; the mutex only guards against the flush ticker.
type Queue struct {
	cfg           engine.EngineConfig
	pub           Publisher
	logger        *slog.Logger
	batchCap      int
	flushInterval time.Duration
	maxRetries    int
	retryBase     time.Duration

	mu      sync.Mutex
	pending []ingest.RawPoint
	tracker *engine.LiveTracker
	dropped int
}

func NewQueue(cfg engine.EngineConfig, pub Publisher, logger *slog.Logger, batchCap int, flushInterval time.Duration, maxRetries int) *Queue {
	cfg = cfg.Sanitize()
	if batchCap <= 0 {
		batchCap = 50
	}
	if flushInterval <= 0 {
		flushInterval = 3 * time.Minute
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:           cfg,
		pub:           pub,
		logger:        logger,
		batchCap:      batchCap,
		flushInterval: flushInterval,
		maxRetries:    maxRetries,
		retryBase:     500 * time.Millisecond,
		tracker:       engine.NewLiveTracker(cfg),
	}
}

// Enqueue validates one fix and buffers it for upload. Invalid fixes are
// dropped and counted; they never reach the queue or the live total.
func (q *Queue) Enqueue(raw ingest.RawPoint) engine.RejectReason {
	point := engine.LocationPoint{
		EmployeeID: raw.EmployeeID,
		SessionID:  raw.SessionID,
		Latitude:   raw.Latitude,
		Longitude:  raw.Longitude,
		AccuracyM:  raw.AccuracyM,
		SpeedMps:   raw.SpeedMps,
		RecordedAt: raw.RecordedAt,
	}
	if reason := engine.ValidatePoint(q.cfg, point); reason != engine.RejectNone {
		q.mu.Lock()
		q.dropped++
		q.mu.Unlock()
		return reason
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracker.Advance(point)
	q.pending = append(q.pending, raw)
	return engine.RejectNone
}

// LiveKm is the advisory total for display while the session runs.
func (q *Queue) LiveKm() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tracker.TotalKm()
}

func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Flush delivers at most one batch. Delivery is retried with doubling
// backoff; when retries are exhausted the batch stays queued for the next
// flush rather than being dropped.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	n := len(q.pending)
	if n > q.batchCap {
		n = q.batchCap
	}
	batch := make([]ingest.RawPoint, n)
	copy(batch, q.pending[:n])
	q.mu.Unlock()

	var err error
	for attempt := 0; attempt < q.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.retryBase << (attempt - 1)):
			}
		}
		if err = q.pub.Publish(ctx, batch); err == nil {
			q.mu.Lock()
			q.pending = q.pending[n:]
			q.mu.Unlock()
			return nil
		}
	}

	q.logger.Warn("flush failed, points stay queued",
		"batch", n, "pending", q.Pending(), "error", err)
	return err
}

// Run flushes on a fixed interval until the context is cancelled, then
// attempts one final flush so a clean shutdown loses nothing reachable.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = q.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			if err := q.Flush(ctx); err != nil {
				q.logger.Warn("scheduled flush failed", "error", err)
			}
		}
	}
}
