// Package reporting renders analytics rollups as CSV and Markdown.
package reporting

import (
	"context"
	"time"

	"promofeed/internal/analytics"
	"promofeed/internal/domain"
)

// Generator produces engagement reports from stored attribution data.
type Generator struct {
	aggregator *analytics.Aggregator
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(aggregator *analytics.Aggregator) *Generator {
	return &Generator{
		aggregator: aggregator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate computes the trailing window rollup along with any data
// quality messages collected during the join.
func (g *Generator) Generate(ctx context.Context, windowDays int) (*domain.Report, []string, error) {
	report, err := g.aggregator.ComputeReport(ctx, windowDays, g.now().UnixMilli())
	if err != nil {
		return nil, nil, err
	}
	return report, g.aggregator.MissingPlacementErrors(), nil
}

// GenerateCSV computes the rollup and renders it as CSV.
func (g *Generator) GenerateCSV(ctx context.Context, windowDays int) (string, error) {
	report, _, err := g.Generate(ctx, windowDays)
	if err != nil {
		return "", err
	}
	return RenderCSV(report), nil
}

// GenerateMarkdown computes the rollup and renders it as Markdown.
func (g *Generator) GenerateMarkdown(ctx context.Context, windowDays int) (string, error) {
	report, quality, err := g.Generate(ctx, windowDays)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(report, quality), nil
}
