package domain

// AggregateBucket is one rolled-up counter cell: a day or dimension value
// mapped to view/click totals. Increments only; nothing is ever subtracted.
type AggregateBucket struct {
	Key              string  `json:"key"` // "2006-01-02" for daily buckets, dimension value otherwise
	Views            int64   `json:"views"`
	Clicks           int64   `json:"clicks"`
	ClickThroughRate float64 `json:"click_through_rate"`
}

// Report is the rollup returned to admin reporting for a trailing window.
type Report struct {
	WindowDays  int   `json:"window_days"`
	GeneratedAt int64 `json:"generated_at"` // Unix ms, UTC

	TotalViews       int64   `json:"total_views"`
	TotalClicks      int64   `json:"total_clicks"`
	ClickThroughRate float64 `json:"click_through_rate"`

	Daily      []*AggregateBucket `json:"daily"`
	ByRegion   []*AggregateBucket `json:"by_region"`
	ByCategory []*AggregateBucket `json:"by_category"`
	ByTier     []*AggregateBucket `json:"by_tier"`
}
