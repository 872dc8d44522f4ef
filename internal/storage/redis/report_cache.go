package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"promofeed/internal/domain"
	"promofeed/internal/storage"
)

// ReportCache implements storage.ReportCache using Redis.
// Reports are stored as JSON with a fixed TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a new ReportCache from an existing client.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Compile-time interface check.
var _ storage.ReportCache = (*ReportCache)(nil)

// GetReport returns the cached report for a window, or nil on cache miss.
func (c *ReportCache) GetReport(ctx context.Context, windowDays int) (*domain.Report, error) {
	data, err := c.client.Get(ctx, reportKey(windowDays)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached report: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("unmarshal cached report: %w", err)
	}

	return &report, nil
}

// SetReport stores a report under its window key with the configured TTL.
func (c *ReportCache) SetReport(ctx context.Context, report *domain.Report) error {
	if report == nil {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := c.client.Set(ctx, reportKey(report.WindowDays), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached report: %w", err)
	}
	return nil
}

func reportKey(windowDays int) string {
	return fmt.Sprintf("report:window:%d", windowDays)
}
