package clickhouse

import (
	"context"
	"fmt"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ClickEventStore implements storage.ClickEventStore using ClickHouse.
type ClickEventStore struct {
	conn *Conn
}

// NewClickEventStore creates a new ClickEventStore.
func NewClickEventStore(conn *Conn) *ClickEventStore {
	return &ClickEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClickEventStore = (*ClickEventStore)(nil)

// Insert appends a click event. Returns ErrDuplicateKey if event_id exists.
// MergeTree enforces no uniqueness, so the duplicate check is an explicit query.
func (s *ClickEventStore) Insert(ctx context.Context, e *domain.ClickEvent) error {
	if e == nil || e.EventID == "" || e.PromotedListingID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO click_events (
			event_id, promoted_listing_id, shop_id, product_id, clicked_at
		) VALUES (?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		e.EventID, e.PromotedListingID, e.ShopID, e.ProductID, e.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves clicks within [start, end) ordered by timestamp ASC.
func (s *ClickEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ClickEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, shop_id, product_id, clicked_at
		FROM click_events
		WHERE clicked_at >= ? AND clicked_at < ?
		ORDER BY clicked_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query clicks by time range: %w", err)
	}
	defer rows.Close()

	return scanClickEvents(rows)
}

// GetByPromotedListingID retrieves all clicks for a placement, ordered by timestamp ASC.
func (s *ClickEventStore) GetByPromotedListingID(ctx context.Context, promotedListingID string) ([]*domain.ClickEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, shop_id, product_id, clicked_at
		FROM click_events
		WHERE promoted_listing_id = ?
		ORDER BY clicked_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, promotedListingID)
	if err != nil {
		return nil, fmt.Errorf("query clicks by promoted listing: %w", err)
	}
	defer rows.Close()

	return scanClickEvents(rows)
}

// exists checks if a click event with the given event_id exists.
func (s *ClickEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT count(*) FROM click_events WHERE event_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanClickEvents scans multiple rows.
func scanClickEvents(rows chRows) ([]*domain.ClickEvent, error) {
	var events []*domain.ClickEvent

	for rows.Next() {
		var e domain.ClickEvent

		err := rows.Scan(
			&e.EventID, &e.PromotedListingID, &e.ShopID, &e.ProductID, &e.ClickedAt,
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
