package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

func setupCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewReportCache(client, time.Minute), mr
}

func testReport(windowDays int) *domain.Report {
	return &domain.Report{
		WindowDays:       windowDays,
		GeneratedAt:      1700000000000,
		TotalViews:       100,
		TotalClicks:      7,
		ClickThroughRate: 0.07,
		Daily: []*domain.AggregateBucket{
			{Key: "2023-11-14", Views: 100, Clicks: 7, ClickThroughRate: 0.07},
		},
	}
}

func TestReportCache_SetAndGet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetReport(ctx, testReport(7)))

	got, err := cache.GetReport(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(100), got.TotalViews)
	require.Equal(t, 0.07, got.ClickThroughRate)
	require.Len(t, got.Daily, 1)
}

func TestReportCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupCache(t)

	got, err := cache.GetReport(context.Background(), 30)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReportCache_WindowsAreIndependent(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetReport(ctx, testReport(7)))
	require.NoError(t, cache.SetReport(ctx, testReport(30)))

	got7, err := cache.GetReport(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 7, got7.WindowDays)

	got30, err := cache.GetReport(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 30, got30.WindowDays)
}

func TestReportCache_TTLExpiry(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetReport(ctx, testReport(7)))

	mr.FastForward(2 * time.Minute)

	got, err := cache.GetReport(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, got, "expected report to expire")
}

func TestReportCache_NilReportRejected(t *testing.T) {
	cache, _ := setupCache(t)

	err := cache.SetReport(context.Background(), nil)
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
