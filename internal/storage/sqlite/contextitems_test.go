package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func createTestSession(t *testing.T, store *Store, projectPath string) *types.Session {
	t.Helper()
	sess := &types.Session{ProjectPath: projectPath, Name: "ctx session"}
	require.NoError(t, store.CreateSession(context.Background(), sess, "alice"))
	return sess
}

func TestSaveContextItemInsertsThenUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	item, err := store.SaveContextItem(ctx, &types.ContextItem{
		SessionID: sess.ID,
		Key:       "db-url",
		Value:     "postgres://localhost/dev",
		Priority:  "high",
	}, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, len(item.Value), item.SizeBytes)

	firstID := item.ID
	updated, err := store.SaveContextItem(ctx, &types.ContextItem{
		SessionID: sess.ID,
		Key:       "db-url",
		Value:     "postgres://localhost/prod",
		Priority:  "critical",
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, firstID, updated.ID, "same (session,key) must upsert rather than duplicate")

	fetched, err := store.GetContextItem(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/prod", fetched.Value)
	assert.Equal(t, "critical", fetched.Priority)
}

func TestListContextItemsAndByProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	_, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "a", Value: "1"}, "alice")
	require.NoError(t, err)
	_, err = store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "b", Value: "2"}, "alice")
	require.NoError(t, err)

	items, err := store.ListContextItems(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	byProject, err := store.ListContextItemsByProject(ctx, "/tmp/proj")
	require.NoError(t, err)
	assert.Len(t, byProject, 2)
}

func TestGetItemIDByKeyAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, "/tmp/proj")

	item, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "secret", Value: "x"}, "alice")
	require.NoError(t, err)

	id, err := store.GetItemIDByKey(ctx, sess.ID, "secret")
	require.NoError(t, err)
	assert.Equal(t, item.ID, id)

	require.NoError(t, store.DeleteContextItem(ctx, item.ID, "alice"))
	_, err = store.GetContextItem(ctx, item.ID)
	assert.Error(t, err)

	_, err = store.GetItemIDByKey(ctx, sess.ID, "secret")
	assert.Error(t, err)
}
