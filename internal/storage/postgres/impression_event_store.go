package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ImpressionEventStore implements storage.ImpressionEventStore using PostgreSQL.
type ImpressionEventStore struct {
	pool *Pool
}

// NewImpressionEventStore creates a new ImpressionEventStore.
func NewImpressionEventStore(pool *Pool) *ImpressionEventStore {
	return &ImpressionEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ImpressionEventStore = (*ImpressionEventStore)(nil)

// Insert appends an impression event. Returns ErrDuplicateKey if event_id exists.
func (s *ImpressionEventStore) Insert(ctx context.Context, e *domain.ImpressionEvent) error {
	if e == nil || e.EventID == "" || e.PromotedListingID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO impression_events (event_id, promoted_listing_id, observed_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, e.EventID, e.PromotedListingID, e.ObservedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert impression event: %w", err)
	}
	return nil
}

// InsertBulk appends multiple impressions in a single transaction.
// The whole batch fails on any duplicate, existing or intra-batch.
func (s *ImpressionEventStore) InsertBulk(ctx context.Context, events []*domain.ImpressionEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e == nil || e.EventID == "" || e.PromotedListingID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk impression insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO impression_events (event_id, promoted_listing_id, observed_at)
		VALUES ($1, $2, $3)
	`

	for _, e := range events {
		if _, err := tx.Exec(ctx, query, e.EventID, e.PromotedListingID, e.ObservedAt); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert impression event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk impression insert: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves impressions within [start, end) ordered by timestamp ASC.
func (s *ImpressionEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ImpressionEvent, error) {
	query := `
		SELECT event_id, promoted_listing_id, observed_at
		FROM impression_events
		WHERE observed_at >= $1 AND observed_at < $2
		ORDER BY observed_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get impressions by time range: %w", err)
	}
	defer rows.Close()

	return scanImpressionEvents(rows)
}

// scanImpressionEvents scans multiple rows into a slice of ImpressionEvent.
func scanImpressionEvents(rows pgx.Rows) ([]*domain.ImpressionEvent, error) {
	var events []*domain.ImpressionEvent

	for rows.Next() {
		var e domain.ImpressionEvent

		err := rows.Scan(&e.EventID, &e.PromotedListingID, &e.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scan impression event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impression event rows: %w", err)
	}

	return events, nil
}
