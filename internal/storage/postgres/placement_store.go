package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// PlacementStore implements storage.PlacementStore using PostgreSQL.
type PlacementStore struct {
	pool *Pool
}

// NewPlacementStore creates a new PlacementStore.
func NewPlacementStore(pool *Pool) *PlacementStore {
	return &PlacementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PlacementStore = (*PlacementStore)(nil)

// Insert adds a new placement. Returns ErrDuplicateKey if promoted_listing_id exists.
func (s *PlacementStore) Insert(ctx context.Context, p *domain.Placement) error {
	if p == nil || p.PromotedListingID == "" || p.ListingID == "" || p.ShopID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO placements (
			promoted_listing_id, listing_id, shop_id, tier, category, region, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PromotedListingID,
		p.ListingID,
		p.ShopID,
		string(p.Tier),
		p.Category,
		p.Region,
		p.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert placement: %w", err)
	}
	return nil
}

// GetByID retrieves a placement by its ID. Returns ErrNotFound if not exists.
func (s *PlacementStore) GetByID(ctx context.Context, promotedListingID string) (*domain.Placement, error) {
	query := `
		SELECT promoted_listing_id, listing_id, shop_id, tier, category, region, created_at
		FROM placements
		WHERE promoted_listing_id = $1
	`

	row := s.pool.QueryRow(ctx, query, promotedListingID)
	p, err := scanPlacement(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get placement by id: %w", err)
	}
	return p, nil
}

// GetByShop retrieves all placements for a given shop.
func (s *PlacementStore) GetByShop(ctx context.Context, shopID string) ([]*domain.Placement, error) {
	query := `
		SELECT promoted_listing_id, listing_id, shop_id, tier, category, region, created_at
		FROM placements
		WHERE shop_id = $1
		ORDER BY created_at ASC, promoted_listing_id ASC
	`

	rows, err := s.pool.Query(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("get placements by shop: %w", err)
	}
	defer rows.Close()

	return scanPlacements(rows)
}

// GetAll retrieves every registered placement.
func (s *PlacementStore) GetAll(ctx context.Context) ([]*domain.Placement, error) {
	query := `
		SELECT promoted_listing_id, listing_id, shop_id, tier, category, region, created_at
		FROM placements
		ORDER BY created_at ASC, promoted_listing_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all placements: %w", err)
	}
	defer rows.Close()

	return scanPlacements(rows)
}

// scanPlacement scans a single row into a Placement.
func scanPlacement(row pgx.Row) (*domain.Placement, error) {
	var p domain.Placement
	var tierStr string

	err := row.Scan(
		&p.PromotedListingID,
		&p.ListingID,
		&p.ShopID,
		&tierStr,
		&p.Category,
		&p.Region,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Tier = domain.Tier(tierStr)
	return &p, nil
}

// scanPlacements scans multiple rows into a slice of Placement.
func scanPlacements(rows pgx.Rows) ([]*domain.Placement, error) {
	var placements []*domain.Placement

	for rows.Next() {
		var p domain.Placement
		var tierStr string

		err := rows.Scan(
			&p.PromotedListingID,
			&p.ListingID,
			&p.ShopID,
			&tierStr,
			&p.Category,
			&p.Region,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan placement row: %w", err)
		}

		p.Tier = domain.Tier(tierStr)
		placements = append(placements, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placement rows: %w", err)
	}

	return placements, nil
}
