package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/core/config"
)

func TestCountApplied(t *testing.T) {
	files := []string{"000001_create_leads.up.sql", "000002_add_index.up.sql", "000003_x.up.sql"}
	assert.Equal(t, 0, countApplied(files, 3, 3))
	assert.Equal(t, 2, countApplied(files, 1, 3))
	assert.Equal(t, 3, countApplied(files, 0, 3))
	assert.Equal(t, uint64(0), parseVersion("junk.sql"))
}

func TestListMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, listMigrationFiles(dir))

	_, err := migrationsDir(config.DatabaseConfig{MigrationsDir: filepath.Join(dir, "nope")})
	assert.Error(t, err)
	got, err := migrationsDir(config.DatabaseConfig{MigrationsDir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "studio", SSLMode: "disable"}
	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=studio sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/studio?sslmode=disable", URL(cfg))
}
