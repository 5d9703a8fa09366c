// Package itf provisions throwaway warehouse schemas for integration tests.
package itf

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/unicorn-warehouse/migrations"
	"github.com/iota-uz/unicorn-warehouse/pkg/configuration"
)

// NewPool connects with a fixed search_path so every statement lands in
// schema. An empty schema keeps the server default.
func NewPool(tb testing.TB, opts configuration.DatabaseOptions, schema string) *pgxpool.Pool {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	config, err := pgxpool.ParseConfig(opts.ConnectionString())
	require.NoError(tb, err)

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Minute * 5
	config.MaxConnIdleTime = time.Second * 30
	if schema != "" {
		config.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(tb, err, "failed to create database pool")
	return pool
}

// Setup returns a pool bound to a fresh schema holding the warehouse tables.
// The schema is dropped when the test ends. Without a reachable Postgres the
// test is skipped, or failed when running in CI.
func Setup(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	opts := configuration.Use().Database
	if !CanDialPostgres(opts) {
		if isCI() {
			tb.Fatalf("postgres is not reachable (DB_HOST/DB_PORT).")
		}
		tb.Skip("postgres is not reachable; skipping warehouse integration test")
	}

	schema := SchemaName(tb.Name())
	ctx := context.Background()

	admin := NewPool(tb, opts, "")
	_, err := admin.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
	require.NoError(tb, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize())
	require.NoError(tb, err)
	tb.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		admin.Close()
	})

	pool := NewPool(tb, opts, schema)
	tb.Cleanup(pool.Close)

	files, err := fs.Glob(migrations.FS, migrations.Dir+"/*.sql")
	require.NoError(tb, err)
	for _, f := range files {
		_, err := pool.Exec(ctx, ReadGooseUpSQL(tb, f))
		require.NoError(tb, err, "failed migration %s", f)
	}
	return pool
}

// SchemaName derives a short, valid identifier from a test name.
func SchemaName(testName string) string {
	sum := sha256.Sum256([]byte(testName))
	return fmt.Sprintf("itf_%x", sum[:8])
}

// ReadGooseUpSQL returns the Up section of an embedded goose migration.
func ReadGooseUpSQL(tb testing.TB, name string) string {
	tb.Helper()

	raw, err := fs.ReadFile(migrations.FS, name)
	require.NoError(tb, err)

	s := string(raw)
	if idx := strings.Index(s, "-- +goose Down"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

func CanDialPostgres(opts configuration.DatabaseOptions) bool {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(opts.Port)
	if port == "" {
		port = "5432"
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func isCI() bool {
	return strings.TrimSpace(os.Getenv("CI")) != "" || strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true")
}
