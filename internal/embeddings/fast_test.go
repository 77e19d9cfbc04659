package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastModelEmbedIsDeterministicAndNormalized(t *testing.T) {
	m := NewFastModel()
	assert.Equal(t, fastDimensions, m.Dimensions())

	vec1, err := m.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	vec2, err := m.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, vec1, vec2)

	var norm float64
	for _, v := range vec1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestFastModelEmbedEmptyText(t *testing.T) {
	m := NewFastModel()
	vec, err := m.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, fastDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestFastModelDistinctTextsDiffer(t *testing.T) {
	m := NewFastModel()
	v1, _ := m.Embed(context.Background(), "database migration failed")
	v2, _ := m.Embed(context.Background(), "unrelated topic entirely")
	assert.NotEqual(t, v1, v2)
}
