package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ClickEventStore implements storage.ClickEventStore using PostgreSQL.
type ClickEventStore struct {
	pool *Pool
}

// NewClickEventStore creates a new ClickEventStore.
func NewClickEventStore(pool *Pool) *ClickEventStore {
	return &ClickEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClickEventStore = (*ClickEventStore)(nil)

// Insert appends a click event. Returns ErrDuplicateKey if event_id exists.
func (s *ClickEventStore) Insert(ctx context.Context, e *domain.ClickEvent) error {
	if e == nil || e.EventID == "" || e.PromotedListingID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO click_events (
			event_id, promoted_listing_id, shop_id, product_id, clicked_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EventID,
		e.PromotedListingID,
		e.ShopID,
		e.ProductID,
		e.ClickedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves clicks within [start, end) ordered by timestamp ASC.
func (s *ClickEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ClickEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, shop_id, product_id, clicked_at
		FROM click_events
		WHERE clicked_at >= $1 AND clicked_at < $2
		ORDER BY clicked_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get clicks by time range: %w", err)
	}
	defer rows.Close()

	return scanClickEvents(rows)
}

// GetByPromotedListingID retrieves all clicks for a placement, ordered by timestamp ASC.
func (s *ClickEventStore) GetByPromotedListingID(ctx context.Context, promotedListingID string) ([]*domain.ClickEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, shop_id, product_id, clicked_at
		FROM click_events
		WHERE promoted_listing_id = $1
		ORDER BY clicked_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, promotedListingID)
	if err != nil {
		return nil, fmt.Errorf("get clicks by promoted listing: %w", err)
	}
	defer rows.Close()

	return scanClickEvents(rows)
}

// scanClickEvents scans multiple rows into a slice of ClickEvent.
func scanClickEvents(rows pgx.Rows) ([]*domain.ClickEvent, error) {
	var events []*domain.ClickEvent

	for rows.Next() {
		var e domain.ClickEvent

		err := rows.Scan(
			&e.EventID,
			&e.PromotedListingID,
			&e.ShopID,
			&e.ProductID,
			&e.ClickedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan click event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click event rows: %w", err)
	}

	return events, nil
}
