package clickhouse

import (
	"context"
	"fmt"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ImpressionEventStore implements storage.ImpressionEventStore using ClickHouse.
type ImpressionEventStore struct {
	conn *Conn
}

// NewImpressionEventStore creates a new ImpressionEventStore.
func NewImpressionEventStore(conn *Conn) *ImpressionEventStore {
	return &ImpressionEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ImpressionEventStore = (*ImpressionEventStore)(nil)

// Insert appends an impression event. Returns ErrDuplicateKey if event_id exists.
func (s *ImpressionEventStore) Insert(ctx context.Context, e *domain.ImpressionEvent) error {
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
		INSERT INTO impression_events (event_id, promoted_listing_id, observed_at)
		VALUES (?, ?, ?)
	`

	if err := s.conn.Exec(ctx, query, e.EventID, e.PromotedListingID, e.ObservedAt); err != nil {
		return fmt.Errorf("insert impression event: %w", err)
	}
	return nil
}

// InsertBulk appends multiple impressions. Fails entire batch on any duplicate,
// existing or intra-batch, before anything is written.
func (s *ImpressionEventStore) InsertBulk(ctx context.Context, events []*domain.ImpressionEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.PromotedListingID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO impression_events (event_id, promoted_listing_id, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(e.EventID, e.PromotedListingID, e.ObservedAt); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves impressions within [start, end) ordered by timestamp ASC.
func (s *ImpressionEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ImpressionEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, observed_at
		FROM impression_events
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY observed_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query impressions by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.ImpressionEvent
	for rows.Next() {
		var e domain.ImpressionEvent

		if err := rows.Scan(&e.EventID, &e.PromotedListingID, &e.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan impression event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impression event rows: %w", err)
	}

	return events, nil
}

// exists checks if an impression event with the given event_id exists.
func (s *ImpressionEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT count(*) FROM impression_events WHERE event_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
