package memory

import (
	"context"
	"sort"
	"sync"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ImpressionEventStore is an in-memory implementation of storage.ImpressionEventStore.
type ImpressionEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ImpressionEvent // keyed by event_id
}

// NewImpressionEventStore creates a new in-memory impression event store.
func NewImpressionEventStore() *ImpressionEventStore {
	return &ImpressionEventStore{
		data: make(map[string]*domain.ImpressionEvent),
	}
}

// Insert appends an impression event. Returns ErrDuplicateKey if event_id exists.
func (s *ImpressionEventStore) Insert(_ context.Context, e *domain.ImpressionEvent) error {
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

// InsertBulk appends multiple impressions atomically. Fails entire batch on any duplicate.
func (s *ImpressionEventStore) InsertBulk(_ context.Context, events []*domain.ImpressionEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(events))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range events {
		if e == nil || e.EventID == "" || e.PromotedListingID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		copy := *e
		s.data[e.EventID] = &copy
	}

	return nil
}

// GetByTimeRange retrieves impressions within [start, end) ordered by timestamp ASC.
func (s *ImpressionEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ImpressionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ImpressionEvent
	for _, e := range s.data {
		if e.ObservedAt >= start && e.ObservedAt < end {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ObservedAt != result[j].ObservedAt {
			return result[i].ObservedAt < result[j].ObservedAt
		}
		return result[i].EventID < result[j].EventID
	})

	return result, nil
}

var _ storage.ImpressionEventStore = (*ImpressionEventStore)(nil)
