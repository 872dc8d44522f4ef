package analytics

import (
	"context"
	"log"
	"time"

	"promofeed/internal/domain"
	"promofeed/internal/observability"
	"promofeed/internal/storage"
)

// Service serves reports with an optional cache layer in front of the
// aggregator. A nil cache disables caching without changing behavior.
type Service struct {
	aggregator *Aggregator
	cache      storage.ReportCache
	logger     *log.Logger

	// now is replaceable for deterministic tests.
	now func() int64
}

// NewService creates an analytics service. cache may be nil.
func NewService(aggregator *Aggregator, cache storage.ReportCache, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		aggregator: aggregator,
		cache:      cache,
		logger:     logger,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// GetReport returns the rollup for the trailing window, consulting the
// cache first. Cache failures are logged and treated as misses, the
// report is still computed from storage.
func (s *Service) GetReport(ctx context.Context, windowDays int) (*domain.Report, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}

	if s.cache != nil {
		cached, err := s.cache.GetReport(ctx, windowDays)
		if err != nil {
			s.logger.Printf("analytics: report cache read failed: %v", err)
		} else if cached != nil {
			observability.RecordReportCacheHit()
			return cached, nil
		}
		observability.RecordReportCacheMiss()
	}

	report, err := s.aggregator.ComputeReport(ctx, windowDays, s.now())
	if err != nil {
		observability.RecordReportComputeError()
		return nil, err
	}

	observability.RecordReportComputed()
	observability.DefaultMetrics.LastSuccessfulReport.Set(float64(report.GeneratedAt) / 1000)

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, report); err != nil {
			s.logger.Printf("analytics: report cache write failed: %v", err)
		}
	}

	return report, nil
}
