package memory

import (
	"context"
	"sort"
	"sync"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ClickEventStore is an in-memory implementation of storage.ClickEventStore.
type ClickEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClickEvent // keyed by event_id
}

// NewClickEventStore creates a new in-memory click event store.
func NewClickEventStore() *ClickEventStore {
	return &ClickEventStore{
		data: make(map[string]*domain.ClickEvent),
	}
}

// Insert appends a click event. Returns ErrDuplicateKey if event_id exists.
func (s *ClickEventStore) Insert(_ context.Context, e *domain.ClickEvent) error {
	if e == nil || e.EventID == "" || e.PromotedListingID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[e.EventID] = &copy
	return nil
}

// GetByTimeRange retrieves clicks within [start, end) ordered by timestamp ASC.
func (s *ClickEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClickEvent
	for _, e := range s.data {
		if e.ClickedAt >= start && e.ClickedAt < end {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortClickEvents(result)
	return result, nil
}

// GetByPromotedListingID retrieves all clicks for a placement, ordered by timestamp ASC.
func (s *ClickEventStore) GetByPromotedListingID(_ context.Context, promotedListingID string) ([]*domain.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClickEvent
	for _, e := range s.data {
		if e.PromotedListingID == promotedListingID {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortClickEvents(result)
	return result, nil
}

func sortClickEvents(events []*domain.ClickEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].ClickedAt != events[j].ClickedAt {
			return events[i].ClickedAt < events[j].ClickedAt
		}
		return events[i].EventID < events[j].EventID
	})
}

var _ storage.ClickEventStore = (*ClickEventStore)(nil)
