// Package analytics computes trailing window rollups of promoted
// listing engagement.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"promofeed/internal/domain"
	"promofeed/internal/observability"
	"promofeed/internal/storage"
)

// ErrInvalidWindow is returned when the requested window length is not positive.
var ErrInvalidWindow = errors.New("window days must be positive")

const msPerDay = 24 * 60 * 60 * 1000

// Aggregator computes engagement reports by joining attribution events
// with the placement registry for dimensional rollups. Safe for
// concurrent use; reports are served per request.
type Aggregator struct {
	clickStore      storage.ClickEventStore
	impressionStore storage.ImpressionEventStore
	genericStore    storage.GenericEventStore
	placementStore  storage.PlacementStore

	// missingPlacements holds promoted_listing_ids referenced by events
	// but absent from the registry (for data quality reporting), from
	// the most recent report. Key: promoted_listing_id, Value: count of
	// events referencing it.
	mu                sync.Mutex
	missingPlacements map[string]int
}

// NewAggregator creates a new analytics aggregator.
func NewAggregator(clicks storage.ClickEventStore, impressions storage.ImpressionEventStore, generics storage.GenericEventStore, placements storage.PlacementStore) *Aggregator {
	return &Aggregator{
		clickStore:        clicks,
		impressionStore:   impressions,
		genericStore:      generics,
		placementStore:    placements,
		missingPlacements: make(map[string]int),
	}
}

// ComputeReport builds a rollup over [now - windowDays, now).
// Storage failures are wrapped and returned to the caller.
func (a *Aggregator) ComputeReport(ctx context.Context, windowDays int, now int64) (*domain.Report, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}

	start := now - int64(windowDays)*msPerDay

	impressions, err := a.impressionStore.GetByTimeRange(ctx, start, now)
	if err != nil {
		return nil, fmt.Errorf("load impressions: %w", err)
	}

	clicks, err := a.clickStore.GetByTimeRange(ctx, start, now)
	if err != nil {
		return nil, fmt.Errorf("load clicks: %w", err)
	}

	generics, err := a.genericStore.GetByTimeRange(ctx, start, now)
	if err != nil {
		return nil, fmt.Errorf("load generic events: %w", err)
	}

	placements, err := a.placementStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}

	index := make(map[string]*domain.Placement, len(placements))
	for _, p := range placements {
		index[p.PromotedListingID] = p
	}

	daily := newBucketSet()
	byRegion := newBucketSet()
	byCategory := newBucketSet()
	byTier := newBucketSet()

	var totalViews, totalClicks int64
	missing := make(map[string]int)
	missingTotal := 0

	for _, e := range impressions {
		totalViews++
		daily.addViews(dayKey(e.ObservedAt), 1)

		p, ok := index[e.PromotedListingID]
		if !ok {
			missing[e.PromotedListingID]++
			missingTotal++
			continue
		}
		byRegion.addViews(p.Region, 1)
		byCategory.addViews(p.Category, 1)
		byTier.addViews(string(p.Tier), 1)
	}

	for _, e := range clicks {
		totalClicks++
		daily.addClicks(dayKey(e.ClickedAt), 1)

		p, ok := index[e.PromotedListingID]
		if !ok {
			missing[e.PromotedListingID]++
			missingTotal++
			continue
		}
		byRegion.addClicks(p.Region, 1)
		byCategory.addClicks(p.Category, 1)
		byTier.addClicks(string(p.Tier), 1)
	}

	// Generic events carry no placement, they feed time buckets only.
	for _, e := range generics {
		switch e.Type {
		case domain.EventTypeView:
			totalViews++
			daily.addViews(dayKey(e.OccurredAt), 1)
		case domain.EventTypeClick:
			totalClicks++
			daily.addClicks(dayKey(e.OccurredAt), 1)
		}
	}

	if missingTotal > 0 {
		observability.RecordMissingPlacements(missingTotal)
	}

	// Replace rather than merge so the data quality signal always
	// describes the window just computed.
	a.mu.Lock()
	a.missingPlacements = missing
	a.mu.Unlock()

	return &domain.Report{
		WindowDays:       windowDays,
		GeneratedAt:      now,
		TotalViews:       totalViews,
		TotalClicks:      totalClicks,
		ClickThroughRate: safeCTR(totalClicks, totalViews),
		Daily:            daily.finalize(),
		ByRegion:         byRegion.finalize(),
		ByCategory:       byCategory.finalize(),
		ByTier:           byTier.finalize(),
	}, nil
}

// MissingPlacements returns a copy of the missing placement counts from
// the most recent report.
func (a *Aggregator) MissingPlacements() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.missingPlacements))
	for k, v := range a.missingPlacements {
		out[k] = v
	}
	return out
}

// MissingPlacementErrors returns data quality messages for events that
// referenced unknown placements, sorted for deterministic output.
func (a *Aggregator) MissingPlacementErrors() []string {
	missing := a.MissingPlacements()
	if len(missing) == 0 {
		return nil
	}

	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, id := range keys {
		msgs[i] = fmt.Sprintf("missing placement %s referenced by %d event(s)", id, missing[id])
	}
	return msgs
}
