package postgres

import (
	"context"
	"fmt"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// GenericEventStore implements storage.GenericEventStore using PostgreSQL.
type GenericEventStore struct {
	pool *Pool
}

// NewGenericEventStore creates a new GenericEventStore.
func NewGenericEventStore(pool *Pool) *GenericEventStore {
	return &GenericEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GenericEventStore = (*GenericEventStore)(nil)

// Insert appends a generic event. Returns ErrDuplicateKey if event_id exists.
func (s *GenericEventStore) Insert(ctx context.Context, e *domain.GenericEvent) error {
	if e == nil || e.EventID == "" || e.ShopID == "" || e.Type == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO generic_events (event_id, event_type, shop_id, product_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EventID,
		string(e.Type),
		e.ShopID,
		e.ProductID,
		e.OccurredAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert generic event: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves events within [start, end) ordered by timestamp ASC.
func (s *GenericEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.GenericEvent, error) {
	query := `
		SELECT event_id, event_type, shop_id, product_id, occurred_at
		FROM generic_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get generic events by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.GenericEvent
	for rows.Next() {
		var e domain.GenericEvent
		var typeStr string

		err := rows.Scan(&e.EventID, &typeStr, &e.ShopID, &e.ProductID, &e.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan generic event row: %w", err)
		}

		e.Type = domain.EventType(typeStr)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generic event rows: %w", err)
	}

	return events, nil
}
