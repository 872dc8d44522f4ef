package clickhouse

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get native port (9000)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	// Connect to ClickHouse
	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// Run migrations
	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies migrations from the embedded migrations directory,
// falling back to inline table definitions when the files are not reachable
// from the test working directory.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	basePath := findSQLDir()
	content, err := os.ReadFile(basePath + "/001_init.sql")
	if err != nil {
		t.Logf("Could not read migration file: %v, using inline migrations", err)
		runInlineMigrations(t, conn)
		return
	}

	// ClickHouse driver doesn't support multiquery, execute statements one by one
	for _, stmt := range splitTestStatements(string(content)) {
		require.NoError(t, conn.Exec(ctx, stmt), "failed to apply migration statement")
	}
}

// findSQLDir attempts to locate the migrations/clickhouse directory.
func findSQLDir() string {
	paths := []string{
		"../migrations/clickhouse",
		"../../../internal/storage/migrations/clickhouse",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "../migrations/clickhouse"
}

// splitTestStatements splits SQL by semicolon, dropping comment-only lines.
func splitTestStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// runInlineMigrations applies table definitions directly without reading files.
func runInlineMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS click_events (
			event_id            String,
			promoted_listing_id String,
			shop_id             String,
			product_id          String,
			clicked_at          Int64
		) ENGINE = MergeTree()
		ORDER BY (clicked_at, event_id)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS impression_events (
			event_id            String,
			promoted_listing_id String,
			observed_at         Int64
		) ENGINE = MergeTree()
		ORDER BY (observed_at, event_id)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS generic_events (
			event_id    String,
			event_type  String,
			shop_id     String,
			product_id  Nullable(String),
			occurred_at Int64
		) ENGINE = MergeTree()
		ORDER BY (occurred_at, event_id)
	`)
	require.NoError(t, err)
}
