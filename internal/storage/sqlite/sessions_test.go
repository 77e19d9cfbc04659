package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func TestCreateSessionCreatesProjectImplicitly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{ProjectPath: "/tmp/fresh-project", Name: "dev session", Status: types.SessionActive}
	require.NoError(t, store.CreateSession(ctx, sess, "alice"))
	assert.NotEmpty(t, sess.ID)

	proj, err := store.GetProject(ctx, "/tmp/fresh-project")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fresh-project", proj.Path)

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev session", got.Name)
}

func TestSessionStatusAndRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{ProjectPath: "/tmp/proj", Name: "first"}
	require.NoError(t, store.CreateSession(ctx, sess, "alice"))

	require.NoError(t, store.RenameSession(ctx, sess.ID, "renamed", "alice"))
	require.NoError(t, store.UpdateSessionStatus(ctx, sess.ID, types.SessionPaused, "alice"))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, types.SessionPaused, got.Status)

	require.NoError(t, store.EndSession(ctx, sess.ID, "alice"))
	got, err = store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, got.Status)
	assert.NotNil(t, got.EndedAt)
}

func TestSessionAdditionalPaths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &types.Session{ProjectPath: "/tmp/proj-a", Name: "multi-repo"}
	require.NoError(t, store.CreateSession(ctx, sess, "alice"))

	require.NoError(t, store.AddSessionPath(ctx, sess.ID, "/tmp/proj-b", "alice"))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/tmp/proj-a", "/tmp/proj-b"}, got.Paths)

	require.NoError(t, store.RemoveSessionPath(ctx, sess.ID, "/tmp/proj-b", "alice"))
	got, err = store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/proj-a"}, got.Paths)
}

func TestListSessionsFiltersByProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s1 := &types.Session{ProjectPath: "/tmp/proj-a", Name: "one"}
	s2 := &types.Session{ProjectPath: "/tmp/proj-b", Name: "two"}
	require.NoError(t, store.CreateSession(ctx, s1, "alice"))
	require.NoError(t, store.CreateSession(ctx, s2, "alice"))

	sessions, err := store.ListSessions(ctx, types.SessionFilter{ProjectPath: "/tmp/proj-a"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s1.ID, sessions[0].ID)
}
