// Package feed merges a ranked organic listing stream with a ranked promoted
// listing stream into one deterministic page.
package feed

import (
	"errors"
	"fmt"

	"promofeed/internal/domain"
)

// DefaultCadence is the number of organic emissions between promoted slots.
// With cadence 4 a promoted item lands at the 5th, 10th, 15th... output
// position (1-indexed).
const DefaultCadence = 4

// ErrMissingIdentity is returned when a candidate has no listing id. This is a
// contract violation by the candidate source, reported rather than silently
// dropped.
var ErrMissingIdentity = errors.New("candidate listing has no identity")

// ErrMissingPromotion is returned when a promoted candidate carries no
// promotion attribute or an empty promoted listing id.
var ErrMissingPromotion = errors.New("promoted candidate has no promotion attribute")

// Compositor interleaves organic and promoted candidate streams.
// It is stateless and safe for concurrent use.
type Compositor struct {
	cadence int
}

// NewCompositor creates a compositor with the given cadence.
// Non-positive cadence falls back to DefaultCadence.
func NewCompositor(cadence int) *Compositor {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Compositor{cadence: cadence}
}

// Compose merges the two pre-ranked streams into one page.
//
// Both inputs are assumed already ranked: organic by relevance, promoted by
// tier/bid. Compose never re-ranks within a stream. One organic item is
// emitted per slot; after every cadence organic emissions the next unconsumed
// promoted item is inserted between them (it does not replace an organic
// item). Promoted items left over when the organic stream ends are appended.
//
// Any organic item whose identity also appears in the promoted set is dropped
// from the organic stream and surfaces once, at its promoted position.
//
// Returns ErrMissingIdentity or ErrMissingPromotion on malformed candidates;
// well-formed listings are never silently dropped.
func (c *Compositor) Compose(organic, promoted []*domain.Listing) (*domain.FeedPage, error) {
	if err := validateOrganic(organic); err != nil {
		return nil, err
	}
	if err := validatePromoted(promoted); err != nil {
		return nil, err
	}

	promoted = dedupePromoted(promoted)

	// Identities claimed by the promoted stream; matching organic items are
	// dropped so each identity surfaces exactly once, at its promoted slot.
	promotedIDs := make(map[string]struct{}, len(promoted))
	for _, p := range promoted {
		promotedIDs[p.ID] = struct{}{}
	}

	out := make([]*domain.Listing, 0, len(organic)+len(promoted))
	nextPromoted := 0
	sinceLastPromoted := 0

	for _, o := range organic {
		if _, claimed := promotedIDs[o.ID]; claimed {
			continue
		}

		out = append(out, o)
		sinceLastPromoted++

		if sinceLastPromoted == c.cadence && nextPromoted < len(promoted) {
			out = append(out, promoted[nextPromoted])
			nextPromoted++
			sinceLastPromoted = 0
		}
	}

	// Cadence slots exhausted: remaining promoted items go after the organic
	// stream, in their given order.
	out = append(out, promoted[nextPromoted:]...)

	return &domain.FeedPage{Listings: out}, nil
}

// Compose merges the streams using the default cadence.
func Compose(organic, promoted []*domain.Listing) (*domain.FeedPage, error) {
	return NewCompositor(DefaultCadence).Compose(organic, promoted)
}

// dedupePromoted collapses duplicate identities within the promoted stream.
// The first occurrence wins unless a later duplicate carries a strictly
// higher tier (highest-value tier wins placement conflicts; ties break by
// candidate-source order). Relative order of survivors is preserved.
func dedupePromoted(promoted []*domain.Listing) []*domain.Listing {
	if len(promoted) < 2 {
		return promoted
	}

	byID := make(map[string]int, len(promoted)) // identity -> index in result
	result := make([]*domain.Listing, 0, len(promoted))

	for _, p := range promoted {
		idx, seen := byID[p.ID]
		if !seen {
			byID[p.ID] = len(result)
			result = append(result, p)
			continue
		}
		if p.Promotion.Tier.Rank() > result[idx].Promotion.Tier.Rank() {
			result[idx] = p
		}
	}

	return result
}

func validateOrganic(organic []*domain.Listing) error {
	for i, o := range organic {
		if o == nil || o.ID == "" {
			return fmt.Errorf("organic candidate at index %d: %w", i, ErrMissingIdentity)
		}
	}
	return nil
}

func validatePromoted(promoted []*domain.Listing) error {
	for i, p := range promoted {
		if p == nil || p.ID == "" {
			return fmt.Errorf("promoted candidate at index %d: %w", i, ErrMissingIdentity)
		}
		if p.Promotion == nil || p.Promotion.PromotedListingID == "" {
			return fmt.Errorf("promoted candidate %q at index %d: %w", p.ID, i, ErrMissingPromotion)
		}
	}
	return nil
}
