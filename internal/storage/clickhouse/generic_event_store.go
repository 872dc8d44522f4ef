package clickhouse

import (
	"context"
	"fmt"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// GenericEventStore implements storage.GenericEventStore using ClickHouse.
type GenericEventStore struct {
	conn *Conn
}

// NewGenericEventStore creates a new GenericEventStore.
func NewGenericEventStore(conn *Conn) *GenericEventStore {
	return &GenericEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GenericEventStore = (*GenericEventStore)(nil)

// Insert appends a generic event. Returns ErrDuplicateKey if event_id exists.
func (s *GenericEventStore) Insert(ctx context.Context, e *domain.GenericEvent) error {
	if e == nil || e.EventID == "" || e.ShopID == "" || e.Type == "" {
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
		INSERT INTO generic_events (event_id, event_type, shop_id, product_id, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		e.EventID, string(e.Type), e.ShopID, e.ProductID, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert generic event: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves events within [start, end) ordered by timestamp ASC.
func (s *GenericEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.GenericEvent, error) {
	query := `
		SELECT event_id, event_type, shop_id, product_id, occurred_at
		FROM generic_events
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query generic events by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.GenericEvent
	for rows.Next() {
		var e domain.GenericEvent
		var typeStr string

		if err := rows.Scan(&e.EventID, &typeStr, &e.ShopID, &e.ProductID, &e.OccurredAt); err != nil {
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

// exists checks if a generic event with the given event_id exists.
func (s *GenericEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT count(*) FROM generic_events WHERE event_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
