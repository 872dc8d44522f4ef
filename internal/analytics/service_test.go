package analytics

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"promofeed/internal/domain"
)

// stubCache is an in-test cache that can be primed or made to fail.
type stubCache struct {
	reports map[int]*domain.Report
	getErr  error
	setErr  error
	sets    int
}

func newStubCache() *stubCache {
	return &stubCache{reports: make(map[int]*domain.Report)}
}

func (c *stubCache) GetReport(_ context.Context, windowDays int) (*domain.Report, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.reports[windowDays], nil
}

func (c *stubCache) SetReport(_ context.Context, report *domain.Report) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.reports[report.WindowDays] = report
	c.sets++
	return nil
}

func newTestService(t *testing.T, cache *stubCache) (*Service, *fixtures) {
	t.Helper()

	agg, f := newFixtures(t)
	var svc *Service
	if cache != nil {
		svc = NewService(agg, cache, log.New(io.Discard, "", 0))
	} else {
		svc = NewService(agg, nil, log.New(io.Discard, "", 0))
	}
	svc.now = func() int64 { return testNow }
	return svc, f
}

func TestService_ComputesAndCaches(t *testing.T) {
	cache := newStubCache()
	svc, f := newTestService(t, cache)
	f.addPlacement(t, "promo-1", "US", "jewelry", domain.TierFeatured)
	f.addImpression(t, "imp-1", "promo-1", testNow-1000)

	report, err := svc.GetReport(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.TotalViews != 1 {
		t.Errorf("Expected 1 view, got %d", report.TotalViews)
	}
	if cache.sets != 1 {
		t.Errorf("Expected report to be cached once, got %d sets", cache.sets)
	}
}

func TestService_ServesFromCache(t *testing.T) {
	cache := newStubCache()
	cache.reports[7] = &domain.Report{WindowDays: 7, TotalViews: 42}

	svc, _ := newTestService(t, cache)

	report, err := svc.GetReport(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.TotalViews != 42 {
		t.Errorf("Expected cached report with 42 views, got %d", report.TotalViews)
	}
	if cache.sets != 0 {
		t.Errorf("Cache hit must not recompute, got %d sets", cache.sets)
	}
}

func TestService_CacheFailureFallsBackToStorage(t *testing.T) {
	cache := newStubCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")

	svc, f := newTestService(t, cache)
	f.addPlacement(t, "promo-1", "US", "jewelry", domain.TierFeatured)
	f.addImpression(t, "imp-1", "promo-1", testNow-1000)

	report, err := svc.GetReport(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetReport must survive cache failure, got %v", err)
	}
	if report.TotalViews != 1 {
		t.Errorf("Expected 1 view, got %d", report.TotalViews)
	}
}

func TestService_NilCache(t *testing.T) {
	svc, _ := newTestService(t, nil)

	report, err := svc.GetReport(context.Background(), 30)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.WindowDays != 30 {
		t.Errorf("Expected window 30, got %d", report.WindowDays)
	}
}

func TestService_InvalidWindow(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.GetReport(context.Background(), 0)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}
}
