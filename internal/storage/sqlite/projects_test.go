package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func TestDeleteProjectCascadesAndLogsEverySyncedKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const project = "/tmp/doomed-proj"

	sess := createTestSession(t, store, project)
	_, err := store.SaveContextItem(ctx, &types.ContextItem{SessionID: sess.ID, Key: "k", Value: "v"}, "alice")
	require.NoError(t, err)
	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: project, Title: "doomed issue"}, "alice")
	require.NoError(t, err)
	plan, err := store.CreatePlan(ctx, &types.Plan{ProjectPath: project, Title: "doomed plan"}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.DeleteProject(ctx, project, "alice"))

	_, err = store.GetProject(ctx, project)
	assert.Error(t, err)
	_, err = store.GetSession(ctx, sess.ID)
	assert.Error(t, err, "cascade should remove the session")
	_, err = store.GetIssue(ctx, issue.ID)
	assert.Error(t, err, "cascade should remove the issue")
	_, err = store.GetPlan(ctx, plan.ID)
	assert.Error(t, err, "cascade should remove the plan")

	for _, kind := range []string{"session", "issue", "plan", "context_item"} {
		var count int
		require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_deletions WHERE entity_type = ? AND project_path = ?`, kind, project).Scan(&count))
		assert.Equalf(t, 1, count, "expected one sync_deletions row for kind %s", kind)
	}
}

func TestDeleteProjectNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.DeleteProject(context.Background(), "/tmp/never-existed", "alice")
	assert.ErrorIs(t, err, errNotFound)
}
