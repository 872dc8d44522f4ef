package domain

// Placement is a registered campaign placement. It carries the reporting
// dimensions (shop region, category, tier) that attribution events themselves
// do not repeat on every row.
// Corresponds to placements table in PostgreSQL.
type Placement struct {
	PromotedListingID string // PRIMARY KEY, campaign placement id
	ListingID         string // the product listing being promoted
	ShopID            string
	Tier              Tier
	Category          string
	Region            string // shop's registered region
	CreatedAt         int64  // Unix timestamp in milliseconds
}
