package store

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("POSTGRES_USER", "bot")
	t.Setenv("POSTGRES_PASSWORD", "p@ss:w/rd")

	require.Equal(t, "postgres://bot:p%40ss%3Aw%2Frd@db:5432/bot_renamer?sslmode=disable", buildPostgresDSNFromEnv())
}

func TestMigrationsEmbedded(t *testing.T) {
	require := require.New(t)

	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(err)
	require.NotEmpty(entries)

	data, err := fs.ReadFile(migrations, "migrations/"+entries[0].Name())
	require.NoError(err)
	sql := string(data)
	require.True(strings.HasPrefix(sql, "-- +goose Up"))
	for _, table := range []string{"users", "user_stats", "batch_history"} {
		require.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
