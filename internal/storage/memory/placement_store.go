package memory

import (
	"context"
	"sort"
	"sync"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// PlacementStore is an in-memory implementation of storage.PlacementStore.
type PlacementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Placement // keyed by promoted_listing_id
}

// NewPlacementStore creates a new in-memory placement store.
func NewPlacementStore() *PlacementStore {
	return &PlacementStore{
		data: make(map[string]*domain.Placement),
	}
}

// Insert adds a new placement. Returns ErrDuplicateKey if exists.
func (s *PlacementStore) Insert(_ context.Context, p *domain.Placement) error {
	if p == nil || p.PromotedListingID == "" || p.ListingID == "" || p.ShopID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PromotedListingID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PromotedListingID] = &copy
	return nil
}

// GetByID retrieves a placement by promoted listing id. Returns ErrNotFound if not exists.
func (s *PlacementStore) GetByID(_ context.Context, promotedListingID string) (*domain.Placement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[promotedListingID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetByShop retrieves all placements registered for a shop.
func (s *PlacementStore) GetByShop(_ context.Context, shopID string) ([]*domain.Placement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Placement
	for _, p := range s.data {
		if p.ShopID == shopID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortPlacements(result)
	return result, nil
}

// GetAll retrieves all placements.
func (s *PlacementStore) GetAll(_ context.Context) ([]*domain.Placement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Placement, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sortPlacements(result)
	return result, nil
}

// sortPlacements orders by creation time, then id, for deterministic reads.
func sortPlacements(placements []*domain.Placement) {
	sort.Slice(placements, func(i, j int) bool {
		if placements[i].CreatedAt != placements[j].CreatedAt {
			return placements[i].CreatedAt < placements[j].CreatedAt
		}
		return placements[i].PromotedListingID < placements[j].PromotedListingID
	})
}

var _ storage.PlacementStore = (*PlacementStore)(nil)
