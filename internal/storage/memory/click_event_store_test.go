package memory

import (
	"context"
	"errors"
	"testing"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

func testClick(id, promotedListingID string, clickedAt int64) *domain.ClickEvent {
	return &domain.ClickEvent{
		EventID:           id,
		PromotedListingID: promotedListingID,
		ShopID:            "shop-1",
		ProductID:         "product-1",
		ClickedAt:         clickedAt,
	}
}

func TestClickEventStore_InsertAndRange(t *testing.T) {
	store := NewClickEventStore()
	ctx := context.Background()

	for _, e := range []*domain.ClickEvent{
		testClick("ev-1", "promo-1", 1000),
		testClick("ev-2", "promo-1", 1100),
		testClick("ev-3", "promo-2", 1200),
	} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, 1000, 1200)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 clicks, got %d", len(result))
	}
	if result[0].EventID != "ev-1" || result[1].EventID != "ev-2" {
		t.Errorf("Wrong ordering: %s, %s", result[0].EventID, result[1].EventID)
	}
}

func TestClickEventStore_DuplicateKey(t *testing.T) {
	store := NewClickEventStore()
	ctx := context.Background()

	e := testClick("ev-1", "promo-1", 1000)
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, e)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestClickEventStore_GetByPromotedListingID(t *testing.T) {
	store := NewClickEventStore()
	ctx := context.Background()

	for _, e := range []*domain.ClickEvent{
		testClick("ev-1", "promo-1", 1100),
		testClick("ev-2", "promo-1", 1000),
		testClick("ev-3", "promo-2", 1200),
	} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByPromotedListingID(ctx, "promo-1")
	if err != nil {
		t.Fatalf("GetByPromotedListingID failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 clicks for promo-1, got %d", len(result))
	}
	if result[0].EventID != "ev-2" {
		t.Errorf("Expected oldest click first, got %s", result[0].EventID)
	}
}

func TestClickEventStore_InvalidInput(t *testing.T) {
	store := NewClickEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.ClickEvent{EventID: "ev-1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty placement id, got %v", err)
	}
}
