package embeddings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInputIsSingleChunk(t *testing.T) {
	chunks := ChunkText("short text that fits in one window", ChunkConfig{MaxChars: 100, Overlap: 10, MinChunkSize: 5})
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text that fits in one window", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("   ", ChunkConfig{MaxChars: 100, Overlap: 10, MinChunkSize: 5}))
}

func TestChunkTextSplitsLongInputWithOverlap(t *testing.T) {
	text := strings.Repeat("word ", 400) // 2000 chars
	chunks := ChunkText(text, ChunkConfig{MaxChars: 500, Overlap: 50, MinChunkSize: 20})
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len(c.Text), 500+1, "chunk should respect roughly MaxChars")
	}
	assert.True(t, chunks[len(chunks)-1].EndOffset == len(strings.TrimSpace(text)))
}

func TestChunkTextCutsAtWordBoundary(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 100)
	chunks := ChunkText(text, ChunkConfig{MaxChars: 200, Overlap: 20, MinChunkSize: 10})
	for _, c := range chunks[:len(chunks)-1] {
		assert.False(t, strings.HasSuffix(c.Text, " alph"), "must not cut mid-word")
	}
}
