// Package attribution persists promoted listing engagement events.
// Recording is fire-and-forget: callers never observe storage failures.
package attribution

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"promofeed/internal/domain"
	"promofeed/internal/idhash"
	"promofeed/internal/observability"
	"promofeed/internal/storage"
)

// task is a unit of work for the recorder workers.
type task struct {
	click       *domain.ClickEvent
	impressions []*domain.ImpressionEvent
	generic     *domain.GenericEvent
}

// Recorder accepts engagement events and persists them asynchronously.
// Writes are retried with bounded exponential backoff; duplicates are
// treated as already recorded so client retries stay idempotent.
type Recorder struct {
	clickStore      storage.ClickEventStore
	impressionStore storage.ImpressionEventStore
	genericStore    storage.GenericEventStore
	logger          *log.Logger

	queue        chan task
	workers      int
	writeTimeout time.Duration
	maxAttempts  int

	wg sync.WaitGroup

	// closeMu makes Close mutually exclusive with in-flight enqueues so
	// the channel is never closed between a producer's closed check and
	// its send.
	closeMu sync.RWMutex
	closed  atomic.Bool

	// Counters exposed via Stats for live reporting.
	clicksStored      atomic.Int64
	impressionsStored atomic.Int64
	genericStored     atomic.Int64
	dropped           atomic.Int64
	failed            atomic.Int64
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	ClickStore      storage.ClickEventStore
	ImpressionStore storage.ImpressionEventStore
	GenericStore    storage.GenericEventStore
	Logger          *log.Logger
	QueueSize       int           // Default: 4096 pending tasks
	Workers         int           // Default: 4
	WriteTimeout    time.Duration // Default: 5s per storage write
	MaxAttempts     int           // Default: 3 attempts per task
}

// NewRecorder creates a recorder and starts its worker pool.
func NewRecorder(opts RecorderOptions) *Recorder {
	queueSize := opts.QueueSize
	if queueSize == 0 {
		queueSize = 4096
	}

	workers := opts.Workers
	if workers == 0 {
		workers = 4
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Recorder{
		clickStore:      opts.ClickStore,
		impressionStore: opts.ImpressionStore,
		genericStore:    opts.GenericStore,
		logger:          logger,
		queue:           make(chan task, queueSize),
		workers:         workers,
		writeTimeout:    writeTimeout,
		maxAttempts:     maxAttempts,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

// RecordClick queues a click for persistence. Never returns an error:
// queue overflow drops the event and logs it.
func (r *Recorder) RecordClick(promotedListingID, shopID, productID string, clickedAt int64) {
	if promotedListingID == "" {
		r.logger.Printf("attribution: dropping click with empty promoted listing id")
		observability.RecordEventDropped("click", "invalid")
		r.dropped.Add(1)
		return
	}

	e := &domain.ClickEvent{
		EventID:           idhash.ComputeClickEventID(promotedListingID, shopID, productID, clickedAt),
		PromotedListingID: promotedListingID,
		ShopID:            shopID,
		ProductID:         productID,
		ClickedAt:         clickedAt,
	}

	r.enqueue(task{click: e}, "click")
}

// RecordImpressions queues a batch of impressions for persistence.
// Duplicate identities inside the batch are collapsed before writing.
func (r *Recorder) RecordImpressions(promotedListingIDs []string, observedAt int64) {
	if len(promotedListingIDs) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(promotedListingIDs))
	var events []*domain.ImpressionEvent
	for _, id := range promotedListingIDs {
		if id == "" {
			r.logger.Printf("attribution: skipping impression with empty promoted listing id")
			observability.RecordEventDropped("impression", "invalid")
			r.dropped.Add(1)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		events = append(events, &domain.ImpressionEvent{
			EventID:           idhash.ComputeImpressionEventID(id, observedAt),
			PromotedListingID: id,
			ObservedAt:        observedAt,
		})
	}

	if len(events) == 0 {
		return
	}

	r.enqueue(task{impressions: events}, "impression")
}

// RecordEvent queues a generic marketplace event for persistence.
func (r *Recorder) RecordEvent(e *domain.GenericEvent) {
	if e == nil || e.EventID == "" || e.ShopID == "" || e.Type == "" {
		r.logger.Printf("attribution: dropping invalid generic event")
		observability.RecordEventDropped("generic", "invalid")
		r.dropped.Add(1)
		return
	}

	r.enqueue(task{generic: e}, "generic")
}

// enqueue offers a task to the queue without blocking the caller.
func (r *Recorder) enqueue(t task, eventType string) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()

	if r.closed.Load() {
		r.logger.Printf("attribution: recorder closed, dropping %s task", eventType)
		observability.RecordEventDropped(eventType, "closed")
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- t:
		observability.UpdateRecorderQueueDepth(len(r.queue))
	default:
		r.logger.Printf("attribution: queue full, dropping %s task", eventType)
		observability.RecordEventDropped(eventType, "overflow")
		r.dropped.Add(1)
	}
}

// Close stops accepting new events and drains the queue. Safe to call
// concurrently with the Record methods and idempotent.
func (r *Recorder) Close() {
	r.closeMu.Lock()
	if !r.closed.CompareAndSwap(false, true) {
		r.closeMu.Unlock()
		return
	}
	close(r.queue)
	r.closeMu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for t := range r.queue {
		observability.UpdateRecorderQueueDepth(len(r.queue))
		switch {
		case t.click != nil:
			r.persistClick(t.click)
		case len(t.impressions) > 0:
			r.persistImpressions(t.impressions)
		case t.generic != nil:
			r.persistGeneric(t.generic)
		}
	}
}

// persistClick writes a click with retries. Duplicate key means a client
// retry of an already recorded click and counts as success.
func (r *Recorder) persistClick(e *domain.ClickEvent) {
	err := r.withRetries(func(ctx context.Context) error {
		return r.clickStore.Insert(ctx, e)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicateSuppressed("click")
			return
		}
		r.logger.Printf("attribution: failed to store click %s: %v", e.EventID, err)
		observability.RecordEventWriteError("click")
		r.failed.Add(1)
		return
	}

	observability.RecordClickStored()
	r.clicksStored.Add(1)
}

// persistImpressions writes a batch. A duplicate anywhere in the batch
// fails the bulk write, so it falls back to per-event inserts where
// duplicates are skipped individually.
func (r *Recorder) persistImpressions(events []*domain.ImpressionEvent) {
	err := r.withRetries(func(ctx context.Context) error {
		return r.impressionStore.InsertBulk(ctx, events)
	})
	if err == nil {
		observability.RecordImpressionsStored(len(events))
		r.impressionsStored.Add(int64(len(events)))
		return
	}

	if !errors.Is(err, storage.ErrDuplicateKey) {
		r.logger.Printf("attribution: failed to store impression batch of %d: %v", len(events), err)
		observability.RecordEventWriteError("impression")
		r.failed.Add(1)
		return
	}

	// Per-event fallback keeps the non-duplicate part of the batch.
	stored := 0
	for _, e := range events {
		err := r.withRetries(func(ctx context.Context) error {
			return r.impressionStore.Insert(ctx, e)
		})
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				observability.RecordDuplicateSuppressed("impression")
				continue
			}
			r.logger.Printf("attribution: failed to store impression %s: %v", e.EventID, err)
			observability.RecordEventWriteError("impression")
			r.failed.Add(1)
			continue
		}
		stored++
	}

	if stored > 0 {
		observability.RecordImpressionsStored(stored)
		r.impressionsStored.Add(int64(stored))
	}
}

func (r *Recorder) persistGeneric(e *domain.GenericEvent) {
	err := r.withRetries(func(ctx context.Context) error {
		return r.genericStore.Insert(ctx, e)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicateSuppressed("generic")
			return
		}
		r.logger.Printf("attribution: failed to store generic event %s: %v", e.EventID, err)
		observability.RecordEventWriteError("generic")
		r.failed.Add(1)
		return
	}

	observability.RecordGenericEventStored()
	r.genericStored.Add(1)
}

// withRetries runs a storage write with a per-attempt timeout. Duplicate
// key and invalid input are terminal and returned immediately.
func (r *Recorder) withRetries(write func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			observability.RecordEventWriteRetry()
			time.Sleep(retryDelay(attempt))
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := write(ctx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrInvalidInput) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// retryDelay computes exponential backoff with +/-20% jitter, bounded.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	ms := 50 * math.Pow(2, float64(attempt))
	if ms > 2000 {
		ms = 2000
	}

	d := time.Duration(ms) * time.Millisecond

	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

// Stats is a snapshot of recorder counters.
type Stats struct {
	ClicksStored      int64 `json:"clicks_stored"`
	ImpressionsStored int64 `json:"impressions_stored"`
	GenericStored     int64 `json:"generic_stored"`
	Dropped           int64 `json:"dropped"`
	Failed            int64 `json:"failed"`
	QueueDepth        int   `json:"queue_depth"`
}

// Stats returns a snapshot of recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		ClicksStored:      r.clicksStored.Load(),
		ImpressionsStored: r.impressionsStored.Load(),
		GenericStored:     r.genericStored.Load(),
		Dropped:           r.dropped.Load(),
		Failed:            r.failed.Load(),
		QueueDepth:        len(r.queue),
	}
}
