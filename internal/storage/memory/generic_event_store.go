package memory

import (
	"context"
	"sort"
	"sync"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// GenericEventStore is an in-memory implementation of storage.GenericEventStore.
type GenericEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.GenericEvent // keyed by event_id
}

// NewGenericEventStore creates a new in-memory generic event store.
func NewGenericEventStore() *GenericEventStore {
	return &GenericEventStore{
		data: make(map[string]*domain.GenericEvent),
	}
}

// Insert appends a generic event. Returns ErrDuplicateKey if event_id exists.
func (s *GenericEventStore) Insert(_ context.Context, e *domain.GenericEvent) error {
	if e == nil || e.EventID == "" || e.ShopID == "" || e.Type == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	if e.ProductID != nil {
		productID := *e.ProductID
		copy.ProductID = &productID
	}
	s.data[e.EventID] = &copy
	return nil
}

// GetByTimeRange retrieves events within [start, end) ordered by timestamp ASC.
func (s *GenericEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.GenericEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GenericEvent
	for _, e := range s.data {
		if e.OccurredAt >= start && e.OccurredAt < end {
			copy := *e
			if e.ProductID != nil {
				productID := *e.ProductID
				copy.ProductID = &productID
			}
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredAt != result[j].OccurredAt {
			return result[i].OccurredAt < result[j].OccurredAt
		}
		return result[i].EventID < result[j].EventID
	})

	return result, nil
}

var _ storage.GenericEventStore = (*GenericEventStore)(nil)
