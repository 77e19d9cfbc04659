package embeddings

import (
	"context"
	"fmt"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

const (
	fastTable    = "embedding_chunks_fast"
	qualityTable = "embedding_chunks"
)

// SaveInline embeds item's text with the fast provider and stores it as
// chunk 0 of the fast table, synchronously, on the save path. Any
// provider error is swallowed — embeddings are best-effort and must never
// fail a save (spec.md §4.5 step 3's "fire-and-forget discipline").
func SaveInline(ctx context.Context, store storage.Storage, fast FastProvider, item *types.ContextItem) {
	if fast == nil {
		return
	}
	text := item.EmbedText()
	vec, err := fast.Embed(ctx, text)
	if err != nil {
		return
	}

	chunk := &types.EmbeddingChunk{
		ItemID:     item.ID,
		ChunkIndex: 0,
		ChunkText:  text,
		Embedding:  vec,
		Provider:   "fast",
		Model:      "hashing-average",
	}
	if err := store.UpsertEmbeddingChunk(ctx, fastTable, chunk); err != nil {
		return
	}
	_ = store.SetItemEmbeddingStatus(ctx, item.ID, types.EmbeddingComplete, types.EmbeddingPending)
}

// SearchResult pairs a context item id with its best-matching chunk and
// similarity score.
type SearchResult struct {
	ItemID    string
	ChunkText string
	Score     float32
}

// search runs semantic search against table (fast or quality tier) for an
// already-embedded query vector, delegating the cosine scan to the
// storage layer (spec.md §4.5 "Semantic search").
func search(ctx context.Context, store storage.Storage, table string, queryVec []float32, sessionID string, limit int, threshold float32) ([]SearchResult, error) {
	chunks, scores, err := store.SearchEmbeddings(ctx, table, queryVec, sessionID, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", table, err)
	}
	out := make([]SearchResult, len(chunks))
	for i, c := range chunks {
		out[i] = SearchResult{ItemID: c.ItemID, ChunkText: c.ChunkText, Score: scores[i]}
	}
	return out, nil
}

// SearchFast embeds query with the fast provider and searches the fast
// tier table.
func SearchFast(ctx context.Context, store storage.Storage, fast FastProvider, query, sessionID string, limit int, threshold float32) ([]SearchResult, error) {
	vec, err := fast.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return search(ctx, store, fastTable, vec, sessionID, limit, threshold)
}

// SearchQuality embeds query with the quality provider and searches the
// quality tier table.
func SearchQuality(ctx context.Context, store storage.Storage, quality QualityProvider, query, sessionID string, limit int, threshold float32) ([]SearchResult, error) {
	vec, err := quality.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return search(ctx, store, qualityTable, vec, sessionID, limit, threshold)
}

// DeleteEmbeddings clears both tiers' chunks for itemID and resets its
// status fields (spec.md §4.5 "Delete-embeddings").
func DeleteEmbeddings(ctx context.Context, store storage.Storage, itemID string) error {
	if err := store.DeleteEmbeddingChunks(ctx, fastTable, itemID); err != nil {
		return fmt.Errorf("clearing fast chunks: %w", err)
	}
	if err := store.DeleteEmbeddingChunks(ctx, qualityTable, itemID); err != nil {
		return fmt.Errorf("clearing quality chunks: %w", err)
	}
	return store.SetItemEmbeddingStatus(ctx, itemID, types.EmbeddingNone, types.EmbeddingNone)
}

// ResyncStatus reclassifies items marked embedding_status=complete with no
// quality chunk row back to pending (spec.md §4.5 "Resync policy").
func ResyncStatus(ctx context.Context, store storage.Storage) (int, error) {
	ids, err := store.ItemsMisclassifiedComplete(ctx)
	if err != nil {
		return 0, fmt.Errorf("finding misclassified items: %w", err)
	}
	for _, id := range ids {
		if err := store.SetItemEmbeddingStatus(ctx, id, types.EmbeddingComplete, types.EmbeddingPending); err != nil {
			return 0, fmt.Errorf("resetting status for %s: %w", id, err)
		}
	}
	return len(ids), nil
}
