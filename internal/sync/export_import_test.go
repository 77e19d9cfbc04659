package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/storage/sqlite"
	"github.com/savecontext/savecontext/internal/types"
)

func newSyncTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sync-test.db")
	store, err := sqlite.Open(context.Background(), dbPath, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestExportWritesOneFilePerNonEmptyKind(t *testing.T) {
	store := newSyncTestStore(t)
	ctx := context.Background()
	const project = "/tmp/sync-proj"

	_, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: project, Title: "exported issue"}, "alice")
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := Export(ctx, store, project, dir, false)
	require.NoError(t, err)
	assert.False(t, result.Nothing)
	assert.Equal(t, 1, result.PerKind["issue"])
	assert.NotContains(t, result.PerKind, "session", "empty kinds are skipped")
}

func TestExportThenImportRoundTripsIntoFreshStore(t *testing.T) {
	ctx := context.Background()
	const project = "/tmp/sync-proj"
	dir := t.TempDir()

	source := newSyncTestStore(t)
	issue, err := source.CreateIssue(ctx, &types.Issue{ProjectPath: project, Title: "roundtrip issue", Priority: 2}, "alice")
	require.NoError(t, err)
	_, err = Export(ctx, source, project, dir, false)
	require.NoError(t, err)

	dest := newSyncTestStore(t)
	result, err := Import(ctx, dest, dir, PreferNewer, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	got, err := dest.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip issue", got.Title)
}

func TestImportDeletionRemovesLocalRecord(t *testing.T) {
	ctx := context.Background()
	const project = "/tmp/sync-proj"
	dir := t.TempDir()

	source := newSyncTestStore(t)
	issue, err := source.CreateIssue(ctx, &types.Issue{ProjectPath: project, Title: "to delete"}, "alice")
	require.NoError(t, err)
	_, err = Export(ctx, source, project, dir, false)
	require.NoError(t, err)

	dest := newSyncTestStore(t)
	_, err = Import(ctx, dest, dir, PreferNewer, "bob")
	require.NoError(t, err)

	require.NoError(t, source.DeleteIssue(ctx, issue.ID, "alice"))
	_, err = Export(ctx, source, project, dir, false)
	require.NoError(t, err)

	result, err := Import(ctx, dest, dir, PreferNewer, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	_, err = dest.GetIssue(ctx, issue.ID)
	assert.Error(t, err)
}

func TestGetStatusReportsDirtyAndTotalCounts(t *testing.T) {
	store := newSyncTestStore(t)
	ctx := context.Background()
	const project = "/tmp/sync-proj"

	_, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: project, Title: "dirty issue"}, "alice")
	require.NoError(t, err)

	dir := t.TempDir()
	status, err := GetStatus(ctx, store, project, dir)
	require.NoError(t, err)
	// Freshly created records are already marked dirty, so there's nothing
	// to backfill — NeedsBackfill only fires for pre-existing data that
	// predates dirty tracking.
	assert.False(t, status.NeedsBackfill)

	var issueStatus *EntityStatus
	for i := range status.Entities {
		if status.Entities[i].Kind == "issue" {
			issueStatus = &status.Entities[i]
		}
	}
	require.NotNil(t, issueStatus)
	assert.Equal(t, 1, issueStatus.TotalCount)
	assert.Equal(t, 1, issueStatus.DirtyCount)
}
