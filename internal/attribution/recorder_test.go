package attribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"promofeed/internal/domain"
	"promofeed/internal/idhash"
	"promofeed/internal/storage"
	"promofeed/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestRecorder(clicks storage.ClickEventStore, impressions storage.ImpressionEventStore, generics storage.GenericEventStore) *Recorder {
	return NewRecorder(RecorderOptions{
		ClickStore:      clicks,
		ImpressionStore: impressions,
		GenericStore:    generics,
		Logger:          quietLogger(),
		Workers:         2,
		MaxAttempts:     1,
	})
}

func TestRecorder_RecordClick(t *testing.T) {
	clicks := memory.NewClickEventStore()
	recorder := newTestRecorder(clicks, memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	recorder.RecordClick("promo-1", "shop-1", "product-1", 1000)
	recorder.Close()

	stored, err := clicks.GetByPromotedListingID(context.Background(), "promo-1")
	if err != nil {
		t.Fatalf("GetByPromotedListingID failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected 1 click, got %d", len(stored))
	}

	want := idhash.ComputeClickEventID("promo-1", "shop-1", "product-1", 1000)
	if stored[0].EventID != want {
		t.Errorf("EventID mismatch: got %s, want %s", stored[0].EventID, want)
	}

	stats := recorder.Stats()
	if stats.ClicksStored != 1 {
		t.Errorf("Expected 1 click in stats, got %d", stats.ClicksStored)
	}
}

func TestRecorder_ClientRetryIsSuppressed(t *testing.T) {
	clicks := memory.NewClickEventStore()
	recorder := newTestRecorder(clicks, memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	// Same click submitted twice, as a client retry would
	recorder.RecordClick("promo-1", "shop-1", "product-1", 1000)
	recorder.RecordClick("promo-1", "shop-1", "product-1", 1000)
	recorder.Close()

	stored, err := clicks.GetByPromotedListingID(context.Background(), "promo-1")
	if err != nil {
		t.Fatalf("GetByPromotedListingID failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected 1 stored click after retry, got %d", len(stored))
	}

	stats := recorder.Stats()
	if stats.Failed != 0 {
		t.Errorf("Retry must not count as failure, got %d", stats.Failed)
	}
}

func TestRecorder_RecordImpressionsBatch(t *testing.T) {
	impressions := memory.NewImpressionEventStore()
	recorder := newTestRecorder(memory.NewClickEventStore(), impressions, memory.NewGenericEventStore())

	recorder.RecordImpressions([]string{"promo-1", "promo-2", "promo-3"}, 1000)
	recorder.Close()

	stored, err := impressions.GetByTimeRange(context.Background(), 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("Expected 3 impressions, got %d", len(stored))
	}
}

func TestRecorder_ImpressionBatchDeduped(t *testing.T) {
	impressions := memory.NewImpressionEventStore()
	recorder := newTestRecorder(memory.NewClickEventStore(), impressions, memory.NewGenericEventStore())

	// Same id twice in one viewport batch must be written once
	recorder.RecordImpressions([]string{"promo-1", "promo-1", "promo-2"}, 1000)
	recorder.Close()

	stored, err := impressions.GetByTimeRange(context.Background(), 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 impressions after dedup, got %d", len(stored))
	}
}

func TestRecorder_ImpressionRetryFallsBackToPerEvent(t *testing.T) {
	impressions := memory.NewImpressionEventStore()
	recorder := newTestRecorder(memory.NewClickEventStore(), impressions, memory.NewGenericEventStore())

	recorder.RecordImpressions([]string{"promo-1"}, 1000)
	// Overlapping retry batch: promo-1 already stored, promo-2 is new
	recorder.Close()

	second := newTestRecorder(memory.NewClickEventStore(), impressions, memory.NewGenericEventStore())
	second.RecordImpressions([]string{"promo-1", "promo-2"}, 1000)
	second.Close()

	stored, err := impressions.GetByTimeRange(context.Background(), 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected 2 impressions after overlapping retry, got %d", len(stored))
	}
}

func TestRecorder_RecordEvent(t *testing.T) {
	generics := memory.NewGenericEventStore()
	recorder := newTestRecorder(memory.NewClickEventStore(), memory.NewImpressionEventStore(), generics)

	productID := "product-1"
	recorder.RecordEvent(&domain.GenericEvent{
		EventID:    "ev-1",
		Type:       domain.EventTypeView,
		ShopID:     "shop-1",
		ProductID:  &productID,
		OccurredAt: 1000,
	})
	recorder.Close()

	stored, err := generics.GetByTimeRange(context.Background(), 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected 1 generic event, got %d", len(stored))
	}
}

func TestRecorder_InvalidInputDroppedSilently(t *testing.T) {
	recorder := newTestRecorder(memory.NewClickEventStore(), memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	recorder.RecordClick("", "shop-1", "product-1", 1000)
	recorder.RecordEvent(nil)
	recorder.RecordImpressions(nil, 1000)
	recorder.Close()

	stats := recorder.Stats()
	if stats.Dropped != 2 {
		t.Errorf("Expected 2 dropped events, got %d", stats.Dropped)
	}
	if stats.Failed != 0 {
		t.Errorf("Invalid input must not count as storage failure, got %d", stats.Failed)
	}
}

// failingClickStore always errors to exercise the swallow path.
type failingClickStore struct{}

func (f *failingClickStore) Insert(context.Context, *domain.ClickEvent) error {
	return errors.New("storage unavailable")
}

func (f *failingClickStore) GetByTimeRange(context.Context, int64, int64) ([]*domain.ClickEvent, error) {
	return nil, errors.New("storage unavailable")
}

func (f *failingClickStore) GetByPromotedListingID(context.Context, string) ([]*domain.ClickEvent, error) {
	return nil, errors.New("storage unavailable")
}

func TestRecorder_StorageFailureIsSwallowed(t *testing.T) {
	recorder := newTestRecorder(&failingClickStore{}, memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	// Must not panic or surface the error to the caller
	recorder.RecordClick("promo-1", "shop-1", "product-1", 1000)
	recorder.Close()

	stats := recorder.Stats()
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed write, got %d", stats.Failed)
	}
	if stats.ClicksStored != 0 {
		t.Errorf("Expected 0 stored clicks, got %d", stats.ClicksStored)
	}
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	recorder := newTestRecorder(memory.NewClickEventStore(), memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	recorder.Close()
	recorder.Close() // must not panic
}

// blockingClickStore parks Insert until released, simulating a stalled
// storage backend.
type blockingClickStore struct {
	store   *memory.ClickEventStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClickStore) Insert(ctx context.Context, e *domain.ClickEvent) error {
	b.entered <- struct{}{}
	<-b.release
	return b.store.Insert(ctx, e)
}

func (b *blockingClickStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ClickEvent, error) {
	return b.store.GetByTimeRange(ctx, start, end)
}

func (b *blockingClickStore) GetByPromotedListingID(ctx context.Context, id string) ([]*domain.ClickEvent, error) {
	return b.store.GetByPromotedListingID(ctx, id)
}

func TestRecorder_QueueOverflowDropsWithoutBlocking(t *testing.T) {
	clicks := memory.NewClickEventStore()
	blocking := &blockingClickStore{
		store:   clicks,
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}

	recorder := NewRecorder(RecorderOptions{
		ClickStore:      blocking,
		ImpressionStore: memory.NewImpressionEventStore(),
		GenericStore:    memory.NewGenericEventStore(),
		Logger:          quietLogger(),
		QueueSize:       1,
		Workers:         1,
		MaxAttempts:     1,
	})

	// First click occupies the worker inside the stalled store.
	recorder.RecordClick("promo-1", "shop-1", "product-1", 1000)
	<-blocking.entered

	// Second click fills the single queue slot; third has nowhere to go.
	recorder.RecordClick("promo-2", "shop-1", "product-1", 1000)
	recorder.RecordClick("promo-3", "shop-1", "product-1", 1000)

	// A caller against a full queue must return promptly, not block.
	done := make(chan struct{})
	go func() {
		recorder.RecordClick("promo-4", "shop-1", "product-1", 1000)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordClick blocked on a full queue")
	}

	if dropped := recorder.Stats().Dropped; dropped != 2 {
		t.Errorf("Expected 2 dropped clicks, got %d", dropped)
	}

	close(blocking.release)
	recorder.Close()

	stored, err := clicks.GetByTimeRange(context.Background(), 0, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Expected the 2 queued clicks stored after release, got %d", len(stored))
	}
}

func TestRecorder_RecordDuringCloseDoesNotPanic(t *testing.T) {
	clicks := memory.NewClickEventStore()
	recorder := newTestRecorder(clicks, memory.NewImpressionEventStore(), memory.NewGenericEventStore())

	const producers = 4
	const perProducer = 500

	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			for i := 0; i < perProducer; i++ {
				recorder.RecordClick(fmt.Sprintf("promo-%d-%d", g, i), "shop-1", "product-1", 1000)
			}
		}(g)
	}

	close(start)
	recorder.Close()
	wg.Wait()

	// Every click is either stored or counted as dropped, never lost to
	// a send on the closed queue.
	stats := recorder.Stats()
	if got := stats.ClicksStored + stats.Dropped; got != producers*perProducer {
		t.Errorf("Expected %d clicks accounted for, got %d (stored=%d dropped=%d)",
			producers*perProducer, got, stats.ClicksStored, stats.Dropped)
	}
}
