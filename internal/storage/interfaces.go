package storage

import (
	"context"

	"promofeed/internal/domain"
)

// PlacementStore provides access to the campaign placement registry.
type PlacementStore interface {
	// Insert adds a new placement. Returns ErrDuplicateKey if promoted_listing_id exists.
	Insert(ctx context.Context, p *domain.Placement) error

	// GetByID retrieves a placement by promoted listing id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, promotedListingID string) (*domain.Placement, error)

	// GetByShop retrieves all placements registered for a shop.
	GetByShop(ctx context.Context, shopID string) ([]*domain.Placement, error)

	// GetAll retrieves all placements.
	GetAll(ctx context.Context) ([]*domain.Placement, error)
}

// ClickEventStore provides access to click_events storage.
type ClickEventStore interface {
	// Insert appends a click event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.ClickEvent) error

	// GetByTimeRange retrieves clicks within [start, end) ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ClickEvent, error)

	// GetByPromotedListingID retrieves all clicks for a placement, ordered by timestamp ASC.
	GetByPromotedListingID(ctx context.Context, promotedListingID string) ([]*domain.ClickEvent, error)
}

// ImpressionEventStore provides access to impression_events storage.
type ImpressionEventStore interface {
	// Insert appends an impression event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.ImpressionEvent) error

	// InsertBulk appends multiple impressions atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.ImpressionEvent) error

	// GetByTimeRange retrieves impressions within [start, end) ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ImpressionEvent, error)
}

// ReportCache caches computed analytics reports keyed by window length.
// A nil report with nil error means cache miss.
type ReportCache interface {
	// GetReport returns the cached report for a window, or nil on miss.
	GetReport(ctx context.Context, windowDays int) (*domain.Report, error)

	// SetReport stores a report for a window with the cache's TTL.
	SetReport(ctx context.Context, report *domain.Report) error
}

// GenericEventStore provides access to generic marketplace events.
type GenericEventStore interface {
	// Insert appends a generic event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.GenericEvent) error

	// GetByTimeRange retrieves events within [start, end) ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.GenericEvent, error)
}
