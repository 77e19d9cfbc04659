package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func TestCreateAndListPlans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := int64(1700000000000)
	created, err := store.CreatePlan(ctx, &types.Plan{
		ProjectPath: "/tmp/proj",
		Title:       "migrate the database",
		Body:        "# steps\n1. backup\n2. migrate",
		DueAt:       &due,
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.PlanDraft, created.Status)
	assert.NotEmpty(t, created.ShortID)
	require.NotNil(t, created.DueAt)
	assert.Equal(t, due, *created.DueAt)

	plans, err := store.ListPlans(ctx, "/tmp/proj")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, created.ID, plans[0].ID)
}

func TestUpdatePlanStatusAndSchedule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan, err := store.CreatePlan(ctx, &types.Plan{ProjectPath: "/tmp/proj", Title: "roll out feature flag"}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.UpdatePlanStatus(ctx, plan.ID, types.PlanActive, "alice"))
	got, err := store.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PlanActive, got.Status)

	due := int64(1800000000000)
	deferUntil := int64(1750000000000)
	require.NoError(t, store.UpdatePlanSchedule(ctx, plan.ID, &due, &deferUntil, "alice"))
	got, err = store.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueAt)
	require.NotNil(t, got.DeferUntil)
	assert.Equal(t, due, *got.DueAt)
	assert.Equal(t, deferUntil, *got.DeferUntil)

	// A nil pointer leaves the existing column untouched (COALESCE).
	require.NoError(t, store.UpdatePlanSchedule(ctx, plan.ID, nil, nil, "alice"))
	got, err = store.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueAt)
	assert.Equal(t, due, *got.DueAt)
}

func TestDeletePlanUnlinksIssues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan, err := store.CreatePlan(ctx, &types.Plan{ProjectPath: "/tmp/proj", Title: "plan with issues"}, "alice")
	require.NoError(t, err)

	issue, err := store.CreateIssue(ctx, &types.Issue{ProjectPath: "/tmp/proj", Title: "linked issue", PlanID: &plan.ID}, "alice")
	require.NoError(t, err)

	require.NoError(t, store.DeletePlan(ctx, plan.ID, "alice"))

	_, err = store.GetPlan(ctx, plan.ID)
	assert.Error(t, err)

	got, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PlanID)
}

func TestFindPlanBySourceHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan, err := store.CreatePlan(ctx, &types.Plan{
		ProjectPath: "/tmp/proj",
		Title:       "imported plan",
		SourceFile:  "docs/plan.md",
	}, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, plan.SourceHash)

	found, err := store.FindPlanBySourceHash(ctx, "/tmp/proj", plan.SourceHash)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, found.ID)
}
