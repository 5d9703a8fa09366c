// Package database opens the warehouse pool and applies its migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/iota-uz/unicorn-warehouse/migrations"
	"github.com/iota-uz/unicorn-warehouse/pkg/configuration"
)

// NewPool builds a pgx pool from the database options. It does not dial;
// the first Begin does, and the warehouse retries that.
func NewPool(ctx context.Context, opts configuration.DatabaseOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(opts.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = opts.MaxConns
	config.MinConns = 0
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

// Migrate runs a goose command ("up" or "status") against the embedded
// warehouse migrations.
func Migrate(ctx context.Context, opts configuration.DatabaseOptions, command string) error {
	switch command {
	case "up", "status":
	default:
		return fmt.Errorf("unknown migrate command %q (expected up|status)", command)
	}

	db, err := sql.Open("postgres", opts.ConnectionString())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if command == "status" {
		return goose.StatusContext(ctx, db, migrations.Dir)
	}
	return goose.UpContext(ctx, db, migrations.Dir)
}
