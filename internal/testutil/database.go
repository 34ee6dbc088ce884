package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/database"
	"github.com/davidleathers/workflow-insights-backend/internal/testutil/containers"
)

// TestDB is a migrated PostgreSQL container for one test
type TestDB struct {
	URL  string
	Pool *pgxpool.Pool
}

// MigrationsDir resolves the repository migrations directory from any package
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", database.DefaultMigrationsDir)
}

// NewTestDB starts PostgreSQL, applies every migration and returns a pool.
// It skips under -short since it needs a container runtime.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	logger := zaptest.NewLogger(t)
	migrator, err := database.NewMigrator(pg.ConnectionString, MigrationsDir(), logger)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(0))
	require.NoError(t, migrator.Close())

	pool, err := database.Connect(ctx, config.DatabaseConfig{URL: pg.ConnectionString, MaxConns: 5}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &TestDB{URL: pg.ConnectionString, Pool: pool}
}

// Truncate empties every application table
func (db *TestDB) Truncate(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), `TRUNCATE analysis_reports, accounts CASCADE`)
	require.NoError(t, err)
}
