package domain

// Tier is the ordered priority class of a promotion.
// SPOTLIGHT outranks FEATURED, which outranks BOOST.
type Tier string

const (
	TierSpotlight Tier = "SPOTLIGHT"
	TierFeatured  Tier = "FEATURED"
	TierBoost     Tier = "BOOST"
)

// Rank returns the numeric precedence of a tier (higher wins).
// Unknown tiers rank below all known tiers.
func (t Tier) Rank() int {
	switch t {
	case TierSpotlight:
		return 3
	case TierFeatured:
		return 2
	case TierBoost:
		return 1
	default:
		return 0
	}
}

// Promotion is present only on sponsored listings. PromotedListingID
// identifies the campaign placement, not the product: the same listing can be
// promoted under multiple campaigns over time.
type Promotion struct {
	PromotedListingID string
	Tier              Tier
}

// Listing is an immutable snapshot of a marketplace listing for feed purposes.
type Listing struct {
	ID       string // unique within one feed render
	Name     string
	ShopID   string
	PriceMin float64
	PriceMax float64
	ImageURL string
	Rating   float64

	// Promotion is nil for organic listings.
	Promotion *Promotion
}

// IsPromoted reports whether the listing carries a paid placement.
func (l *Listing) IsPromoted() bool {
	return l.Promotion != nil
}

// FeedPage is the ordered result of one composition call. It never contains
// two listings with the same ID.
type FeedPage struct {
	Listings []*Listing
}

// PromotedListingIDs returns the campaign placement ids present on the page,
// in page order. The storefront emits one impression per entry after render.
func (p *FeedPage) PromotedListingIDs() []string {
	var ids []string
	for _, l := range p.Listings {
		if l.Promotion != nil {
			ids = append(ids, l.Promotion.PromotedListingID)
		}
	}
	return ids
}
