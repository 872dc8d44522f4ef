package domain

// EventType classifies generic marketplace events.
type EventType string

const (
	EventTypeView  EventType = "VIEW"
	EventTypeClick EventType = "CLICK"
)

// ClickEvent records a click on a sponsored card.
// Corresponds to click_events table.
type ClickEvent struct {
	EventID           string // PRIMARY KEY, deterministic hash
	PromotedListingID string
	ShopID            string
	ProductID         string
	ClickedAt         int64 // Unix timestamp in milliseconds, UTC
}

// ImpressionEvent records one display of a promoted placement.
// Corresponds to impression_events table.
type ImpressionEvent struct {
	EventID           string // PRIMARY KEY, deterministic hash
	PromotedListingID string
	ObservedAt        int64 // Unix timestamp in milliseconds, UTC
}

// GenericEvent is a marketplace-level page view or click-through that is not
// tied to a promoted placement.
type GenericEvent struct {
	EventID    string    // PRIMARY KEY, random uuid
	Type       EventType // VIEW | CLICK
	ShopID     string
	ProductID  *string // nullable: page-level views carry no product
	OccurredAt int64   // Unix timestamp in milliseconds, UTC
}
