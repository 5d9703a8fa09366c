package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/unicorn-warehouse/migrations"
	"github.com/iota-uz/unicorn-warehouse/pkg/configuration"
)

func TestMigrate_RejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	err := Migrate(context.Background(), configuration.DatabaseOptions{}, "down")
	require.ErrorContains(t, err, "unknown migrate command")
}

func TestEmbeddedMigrationsHaveGooseSections(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(migrations.FS, migrations.Dir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		raw, err := fs.ReadFile(migrations.FS, f)
		require.NoError(t, err)
		s := string(raw)
		require.True(t, strings.HasPrefix(s, "-- +goose Up"), f)
		require.Contains(t, s, "-- +goose Down", f)
	}
}

func TestNewPool_AppliesMaxConns(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(context.Background(), configuration.DatabaseOptions{
		Name: "unicorn_db", Host: "localhost", Port: "5432", User: "postgres", Password: "postgres",
		MaxConns: 7,
	})
	require.NoError(t, err)
	defer pool.Close()
	require.Equal(t, int32(7), pool.Config().MaxConns)
}
