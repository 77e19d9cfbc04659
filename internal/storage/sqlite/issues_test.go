package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

func TestCreateAndGetIssue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := &types.Issue{
		ProjectPath: "/tmp/proj",
		Title:       "fix the thing",
		Priority:    3,
	}
	created, err := store.CreateIssue(ctx, issue, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.ShortID)
	assert.Equal(t, types.IssueOpen, created.Status)
	assert.Equal(t, types.IssueTypeTask, created.IssueType)

	fetched, err := store.GetIssue(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "fix the thing", fetched.Title)
}

func TestGetIssueNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetIssue(context.Background(), "nope-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateIssueDueDefer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "scheduled"}, "alice")
	require.NoError(t, err)

	due := int64(1700000000000)
	err = store.UpdateIssue(ctx, issue.ID, map[string]interface{}{"due_at": due}, "alice")
	require.NoError(t, err)

	got, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, due, *got.DueAt)
}

func TestUpdateIssueRejectsUnknownColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "x"}, "alice")
	require.NoError(t, err)

	err = store.UpdateIssue(ctx, issue.ID, map[string]interface{}{"id": "new-id"}, "alice")
	assert.Error(t, err)
}

func TestClaimCloseReleaseIssue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "claim me"}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.ClaimIssue(ctx, issue.ID, "bob", "alice"))
	got, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IssueInProgress, got.Status)
	assert.Equal(t, "bob", got.Assignee)

	require.NoError(t, store.ReleaseIssue(ctx, issue.ID, "alice"))
	got, err = store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IssueOpen, got.Status)
	assert.Empty(t, got.Assignee)

	require.NoError(t, store.CloseIssue(ctx, issue.ID, "fixed in review", "alice"))
	got, err = store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IssueClosed, got.Status)
	assert.Equal(t, "fixed in review", got.CloseReason)
}

func TestReadyWorkExcludesBlockedIssues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blocker, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "blocker", Priority: 1}, "alice")
	require.NoError(t, err)
	blocked, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "blocked", Priority: 4}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.AddDependency(ctx, &types.Dependency{
		IssueID: blocked.ID, DependsOnID: blocker.ID, Type: types.DependencyBlocks,
	}, "alice"))

	ready, err := store.GetReadyWork(ctx, "/tmp/proj", 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(ready))
	for _, i := range ready {
		ids = append(ids, i.ID)
	}
	assert.Contains(t, ids, blocker.ID)
	assert.NotContains(t, ids, blocked.ID)

	blockedList, err := store.GetBlockedIssues(ctx, "/tmp/proj")
	require.NoError(t, err)
	require.Len(t, blockedList, 1)
	assert.Equal(t, blocked.ID, blockedList[0].ID)

	require.NoError(t, store.CloseIssue(ctx, blocker.ID, "done", "alice"))
	ready, err = store.GetReadyWork(ctx, "/tmp/proj", 0)
	require.NoError(t, err)
	ids = ids[:0]
	for _, i := range ready {
		ids = append(ids, i.ID)
	}
	assert.Contains(t, ids, blocked.ID)
}

func TestLabelsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "labeled"}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.AddLabel(ctx, issue.ID, "needs-review", "alice"))
	require.NoError(t, store.AddLabel(ctx, issue.ID, "urgent", "alice"))

	labels, err := store.GetLabels(ctx, issue.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"needs-review", "urgent"}, labels)

	require.NoError(t, store.RemoveLabel(ctx, issue.ID, "urgent", "alice"))
	labels, err = store.GetLabels(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"needs-review"}, labels)
}

func TestIssueCommentsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "commented"}, "alice")
	require.NoError(t, err)

	c1, err := store.AddIssueComment(ctx, issue.ID, "alice", "looking into this")
	require.NoError(t, err)
	assert.Equal(t, "alice", c1.Author)

	_, err = store.AddIssueComment(ctx, issue.ID, "bob", "found the bug")
	require.NoError(t, err)

	comments, err := store.GetIssueComments(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "looking into this", comments[0].Text)
}
