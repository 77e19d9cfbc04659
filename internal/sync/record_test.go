package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savecontext/savecontext/internal/types"
)

func TestContentHashIsStableAndSensitive(t *testing.T) {
	issue := &types.Issue{ID: "iss-1", Title: "fix the thing", Status: types.IssueOpen}
	h1, err := contentHash(issue)
	require.NoError(t, err)
	h2, err := contentHash(issue)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	issue.Title = "fix the other thing"
	h3, err := contentHash(issue)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestWrapRecordEmbedsDiscriminatorAndHash(t *testing.T) {
	issue := &types.Issue{ID: "iss-1", Title: "fix the thing", Status: types.IssueOpen}
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	line, hash, err := wrapRecord("issue", issue, ts)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	var env envelope
	require.NoError(t, json.Unmarshal(line, &env))
	assert.Equal(t, "issue", env.Type)
	assert.Equal(t, "iss-1", env.ID)
	assert.Equal(t, hash, env.ContentHash)
}
