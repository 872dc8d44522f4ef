// Package main runs the sponsored listing service:
// - Feed composition API (organic + promoted interleaving)
// - Attribution recording (clicks, impressions, generic events)
// - Analytics rollups with optional Redis caching
// - Live recorder stats over WebSocket
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"promofeed/internal/analytics"
	"promofeed/internal/attribution"
	"promofeed/internal/feed"
	"promofeed/internal/httpapi"
	"promofeed/internal/storage"
	chstore "promofeed/internal/storage/clickhouse"
	"promofeed/internal/storage/memory"
	"promofeed/internal/storage/migrations"
	pgstore "promofeed/internal/storage/postgres"
	redisstore "promofeed/internal/storage/redis"
)

// allStores holds all storage implementations.
type allStores struct {
	placementStore  storage.PlacementStore
	clickStore      storage.ClickEventStore
	impressionStore storage.ImpressionEventStore
	genericStore    storage.GenericEventStore
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", getEnv("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	eventsBackend := flag.String("events-backend", getEnv("EVENTS_BACKEND", "clickhouse"), "Where attribution events are stored: clickhouse or postgres")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for report caching (optional)")
	redisPassword := flag.String("redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	redisDB := flag.Int("redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	cacheTTL := flag.Duration("cache-ttl", 5*time.Minute, "Report cache TTL")
	cadence := flag.Int("cadence", feed.DefaultCadence, "Organic listings between promoted slots")
	queueSize := flag.Int("queue-size", 4096, "Attribution recorder queue size")
	workers := flag.Int("workers", 4, "Attribution recorder worker count")
	statsInterval := flag.Duration("stats-interval", 5*time.Second, "Live stats broadcast interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
		}
		if *eventsBackend == "clickhouse" && *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when events-backend is clickhouse")
		}
	}
	if *cadence < 1 {
		logger.Fatal("--cadence must be at least 1")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *eventsBackend, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Report cache is optional; the analytics service recomputes on miss
	var reportCache storage.ReportCache
	if *redisAddr != "" {
		client, err := redisstore.NewClient(ctx, *redisAddr, *redisPassword, *redisDB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		reportCache = redisstore.NewReportCache(client, *cacheTTL)
		logger.Printf("Report caching enabled (redis %s, ttl %v)", *redisAddr, *cacheTTL)
	}

	// Create components
	recorder := attribution.NewRecorder(attribution.RecorderOptions{
		ClickStore:      stores.clickStore,
		ImpressionStore: stores.impressionStore,
		GenericStore:    stores.genericStore,
		Logger:          log.New(os.Stdout, "[attribution] ", log.LstdFlags|log.Lshortfile),
		QueueSize:       *queueSize,
		Workers:         *workers,
	})

	aggregator := analytics.NewAggregator(stores.clickStore, stores.impressionStore, stores.genericStore, stores.placementStore)
	analyticsSvc := analytics.NewService(aggregator, reportCache, logger)

	live := httpapi.NewLiveBroadcaster(logger)
	handler := httpapi.NewHandler(feed.NewCompositor(*cadence), recorder, analyticsSvc, stores.placementStore, logger)
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Handler: handler,
		Live:    live,
		Logger:  logger,
	})

	// Broadcast recorder stats to live WebSocket clients
	go broadcastStats(ctx, recorder, live, *statsInterval)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Closed once srv.Shutdown has returned, i.e. all in-flight
	// handlers have finished.
	shutdownDone := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Second signal forces immediate exit
		go func() {
			sig := <-sigCh
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		}()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	logger.Printf("Starting HTTP server on %s (events backend: %s)", *addr, backendName(*useMemory, *eventsBackend))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	// In-flight handlers may still be enqueueing events; close the
	// recorder only after Shutdown has drained them.
	<-shutdownDone

	// Drain queued attribution events before exit
	recorder.Close()
	stats := recorder.Stats()
	logger.Printf("Recorder drained: %d clicks, %d impressions, %d events stored, %d dropped, %d failed",
		stats.ClicksStored, stats.ImpressionsStored, stats.GenericStored, stats.Dropped, stats.Failed)

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
// Placements always live in PostgreSQL; event stores come from the
// configured events backend.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, eventsBackend string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			placementStore:  memory.NewPlacementStore(),
			clickStore:      memory.NewClickEventStore(),
			impressionStore: memory.NewImpressionEventStore(),
			genericStore:    memory.NewGenericEventStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		placementStore: pgstore.NewPlacementStore(pool),
	}

	switch eventsBackend {
	case "postgres":
		stores.clickStore = pgstore.NewClickEventStore(pool)
		stores.impressionStore = pgstore.NewImpressionEventStore(pool)
		stores.genericStore = pgstore.NewGenericEventStore(pool)
		return stores, pool.Close, nil

	case "clickhouse":
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.clickStore = chstore.NewClickEventStore(chConn)
		stores.impressionStore = chstore.NewImpressionEventStore(chConn)
		stores.genericStore = chstore.NewGenericEventStore(chConn)
		cleanup := func() {
			chConn.Close()
			pool.Close()
		}
		return stores, cleanup, nil

	default:
		pool.Close()
		return nil, nil, fmt.Errorf("unknown events backend %q (want clickhouse or postgres)", eventsBackend)
	}
}

// broadcastStats pushes recorder stats to connected WebSocket clients.
func broadcastStats(ctx context.Context, recorder *attribution.Recorder, live *httpapi.LiveBroadcaster, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if live.ClientCount() > 0 {
				live.BroadcastStats(recorder.Stats())
			}
		}
	}
}

func backendName(useMemory bool, eventsBackend string) string {
	if useMemory {
		return "memory"
	}
	return eventsBackend
}

// getEnv returns the environment variable value or a default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the environment variable parsed as int or a default.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
