// Package dbtest provides migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flasky/internal/database"
)

// New opens a private in-memory database with every migration applied.
// It is closed when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.OpenDSN(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := database.NewMigrator(db)
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))
	return db
}
