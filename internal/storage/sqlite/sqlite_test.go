package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(context.Background(), dbPath, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenAppliesSchemaAndMigrationsIdempotently(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(ctx, dbPath, time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening an already-migrated database must not fail: every
	// migration step tolerates "duplicate column" (spec.md §4.1).
	store2, err := Open(ctx, dbPath, time.Second)
	require.NoError(t, err)
	require.NoError(t, store2.Close())
}
