package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erp/cvr/internal/infrastructure/migration"
	"github.com/erp/cvr/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&cli{out: &out})
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	t.Run("embedded set", func(t *testing.T) {
		out, err := run(t, "list")
		require.NoError(t, err)

		want, err := migration.ListMigrations(migrations.FS)
		require.NoError(t, err)
		assert.Equal(t, want, strings.Fields(out))
	})

	t.Run("directory on disk", func(t *testing.T) {
		dir := t.TempDir()
		for _, f := range []string{"0001_a.up.sql", "0001_a.down.sql", "0002_b.up.sql"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o600))
		}
		out, err := run(t, "--path", dir, "list")
		require.NoError(t, err)
		assert.Equal(t, []string{"0001_a", "0002_b"}, strings.Fields(out))
	})
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "--path", dir, "create", "add fact index", "-d", "Speed up lookups")
	require.NoError(t, err)

	paths := strings.Fields(out)
	require.Len(t, paths, 2)
	assert.True(t, strings.HasSuffix(paths[0], "_add_fact_index.up.sql"))
	assert.True(t, strings.HasSuffix(paths[1], "_add_fact_index.down.sql"))

	up, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(up), "Speed up lookups")
}

func TestCommandsRejectBadInput(t *testing.T) {
	sqliteConfig := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(sqliteConfig, []byte("[database]\ndriver = \"sqlite\"\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"step needs a number", []string{"step", "one"}, "invalid step count"},
		{"step zero", []string{"step", "0"}, "invalid step count"},
		{"force needs a number", []string{"force", "x"}, "invalid version"},
		{"create needs a name", []string{"create"}, "accepts 1 arg"},
		{"sqlite is not migrated here", []string{"--config", sqliteConfig, "up"}, "not migrated by this tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
