package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/workflow-insights-backend/internal/testutil"
)

func TestMigrationsDirectory(t *testing.T) {
	info, err := os.Stat(testutil.MigrationsDir())
	require.NoError(t, err)
	require.True(t, info.IsDir())

	next, err := nextSequence(testutil.MigrationsDir())
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	up, down, err := createMigration(dir, "add_runs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "000001_add_runs.up.sql"), up)
	assert.Equal(t, filepath.Join(dir, "000001_add_runs.down.sql"), down)
	assert.FileExists(t, up)
	assert.FileExists(t, down)

	testutil.WriteFile(t, dir, "000007_manual.up.sql", "SELECT 1;")
	testutil.WriteFile(t, dir, "notes.txt", "ignored")

	up, _, err = createMigration(dir, "next_one")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "000008_next_one.up.sql"), up)

	_, _, err = createMigration(dir, "Bad Name")
	assert.Error(t, err)
}
