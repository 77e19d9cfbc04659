package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func TestCreateCheckpointSnapshotsContextItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	_, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "a", Value: "1"}, "alice")
	require.NoError(t, err)
	_, err = store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "b", Value: "2"}, "alice")
	require.NoError(t, err)

	cp, err := store.CreateCheckpoint(ctx, sess.ID, "before refactor", "snapshot", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, cp.ID)

	list, err := store.ListCheckpoints(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "before refactor", list[0].Name)
}

func TestRestoreCheckpointIsDestructiveAndAssignsFreshIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	original, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "kept", Value: "v1"}, "alice")
	require.NoError(t, err)
	cp, err := store.CreateCheckpoint(ctx, sess.ID, "snap", "", "alice")
	require.NoError(t, err)

	// Mutate the session's live state after the checkpoint: change the
	// snapshotted item and add one the checkpoint never saw.
	_, err = store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "kept", Value: "v2-live"}, "alice")
	require.NoError(t, err)
	_, err = store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "never-checkpointed", Value: "x"}, "alice")
	require.NoError(t, err)

	count, err := store.RestoreCheckpoint(ctx, cp.ID, sess.ID, nil, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := store.ListContextItems(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, items, 1, "restore must delete items absent from the checkpoint, not just upsert")
	assert.Equal(t, "kept", items[0].Key)
	assert.Equal(t, "v1", items[0].Value, "restore must bring back the checkpointed value, not the live one")
	assert.NotEqual(t, original.ID, items[0].ID, "restored rows get fresh ids rather than reusing the original's")
}

func TestRestoreCheckpointFiltersByCategoryAndTag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	_, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "a", Value: "1", Category: "decision", Tags: []string{"keep"}}, "alice")
	require.NoError(t, err)
	_, err = store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "b", Value: "2", Category: "scratch"}, "alice")
	require.NoError(t, err)

	cp, err := store.CreateCheckpoint(ctx, sess.ID, "filtered snap", "", "alice")
	require.NoError(t, err)

	count, err := store.RestoreCheckpoint(ctx, cp.ID, sess.ID, []string{"decision"}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := store.ListContextItems(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Key)
}

func TestDeleteCheckpointRecordsSyncDeletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	cp, err := store.CreateCheckpoint(ctx, sess.ID, "to delete", "", "alice")
	require.NoError(t, err)

	require.NoError(t, store.DeleteCheckpoint(ctx, cp.ID, "alice"))

	_, err = store.GetCheckpoint(ctx, cp.ID)
	assert.Error(t, err)

	var entityID string
	err = store.db.QueryRowContext(ctx, `SELECT entity_id FROM sync_deletions WHERE entity_type = 'checkpoint' AND entity_id = ?`, cp.ID).Scan(&entityID)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, entityID)
}
