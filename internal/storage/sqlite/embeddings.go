package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

var embeddingTables = map[string]bool{
	"embedding_chunks_fast": true,
	"embedding_chunks":      true,
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte, dimensions int) []float32 {
	vec := make([]float32, dimensions)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func (s *Store) UpsertEmbeddingChunk(ctx context.Context, table string, chunk *types.EmbeddingChunk) error {
	if !embeddingTables[table] {
		return fmt.Errorf("unknown embedding table %q", table)
	}
	if chunk.ID == "" {
		chunk.ID = idgen.New("emb")
	}
	chunk.CreatedAt = nowMillis()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, item_id, chunk_index, chunk_text, embedding, dimensions, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id, chunk_index) DO UPDATE SET
			chunk_text = excluded.chunk_text, embedding = excluded.embedding, dimensions = excluded.dimensions,
			provider = excluded.provider, model = excluded.model, created_at = excluded.created_at
	`, table) // #nosec G201 - table validated against embeddingTables above

	_, err := s.db.ExecContext(ctx, query, chunk.ID, chunk.ItemID, chunk.ChunkIndex, chunk.ChunkText,
		encodeEmbedding(chunk.Embedding), len(chunk.Embedding), chunk.Provider, chunk.Model, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting embedding chunk into %s: %w", table, err)
	}
	return nil
}

func (s *Store) GetEmbeddingChunks(ctx context.Context, table, itemID string) ([]*types.EmbeddingChunk, error) {
	if !embeddingTables[table] {
		return nil, fmt.Errorf("unknown embedding table %q", table)
	}
	query := fmt.Sprintf(`
		SELECT id, item_id, chunk_index, chunk_text, embedding, dimensions, provider, model, created_at
		FROM %s WHERE item_id = ? ORDER BY chunk_index ASC
	`, table) // #nosec G201 - table validated against embeddingTables above

	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting embedding chunks from %s: %w", table, err)
	}
	defer rows.Close()

	var out []*types.EmbeddingChunk
	for rows.Next() {
		c := &types.EmbeddingChunk{}
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ItemID, &c.ChunkIndex, &c.ChunkText, &blob, &c.Dimensions, &c.Provider, &c.Model, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = decodeEmbedding(blob, c.Dimensions)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEmbeddingChunks(ctx context.Context, table, itemID string) error {
	if !embeddingTables[table] {
		return fmt.Errorf("unknown embedding table %q", table)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE item_id = ?`, table) // #nosec G201 - table validated against embeddingTables above
	if _, err := s.db.ExecContext(ctx, query, itemID); err != nil {
		return fmt.Errorf("deleting embedding chunks from %s: %w", table, err)
	}
	return nil
}

// SearchEmbeddings brute-forces cosine similarity against every chunk
// of sessionID's context items (or every chunk if sessionID is empty),
// deduping to the best-scoring chunk per item, and returns the top
// `limit` items scoring at or above threshold, highest first (spec.md
// §4.5).
func (s *Store) SearchEmbeddings(ctx context.Context, table string, query []float32, sessionID string, limit int, threshold float32) ([]*types.EmbeddingChunk, []float32, error) {
	if !embeddingTables[table] {
		return nil, nil, fmt.Errorf("unknown embedding table %q", table)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT e.id, e.item_id, e.chunk_index, e.chunk_text, e.embedding, e.dimensions, e.provider, e.model, e.created_at
		FROM %s e
	`, table) // #nosec G201 - table validated against embeddingTables above
	var args []interface{}
	if sessionID != "" {
		sqlQuery += ` JOIN context_items c ON c.id = e.item_id WHERE c.session_id = ?`
		args = append(args, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning embeddings from %s: %w", table, err)
	}
	defer rows.Close()

	type scored struct {
		chunk *types.EmbeddingChunk
		score float32
	}
	bestByItem := make(map[string]scored)

	for rows.Next() {
		c := &types.EmbeddingChunk{}
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ItemID, &c.ChunkIndex, &c.ChunkText, &blob, &c.Dimensions, &c.Provider, &c.Model, &c.CreatedAt); err != nil {
			return nil, nil, err
		}
		if c.Dimensions != len(query) {
			continue // mismatched dimensionality, e.g. a stale provider's rows
		}
		c.Embedding = decodeEmbedding(blob, c.Dimensions)
		score := cosineSimilarity(query, c.Embedding)
		if score < threshold {
			continue
		}
		if existing, ok := bestByItem[c.ItemID]; !ok || score > existing.score {
			bestByItem[c.ItemID] = scored{chunk: c, score: score}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	results := make([]scored, 0, len(bestByItem))
	for _, v := range bestByItem {
		results = append(results, v)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	chunks := make([]*types.EmbeddingChunk, len(results))
	scores := make([]float32, len(results))
	for i, r := range results {
		chunks[i] = r.chunk
		scores[i] = r.score
	}
	return chunks, scores, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func (s *Store) SetItemEmbeddingStatus(ctx context.Context, itemID, fastStatus, qualityStatus string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE context_items SET fast_embedding_status = ?, embedding_status = ?, fast_embedded_at = ?, updated_at = ? WHERE id = ?
	`, fastStatus, qualityStatus, nowMillis(), nowMillis(), itemID)
	if err != nil {
		return fmt.Errorf("setting embedding status: %w", err)
	}
	return nil
}

// ItemsNeedingQualityEmbedding returns items whose fast tier is complete
// but whose quality tier is still pending, feeding the background upgrade
// process (spec.md §4.5).
func (s *Store) ItemsNeedingQualityEmbedding(ctx context.Context, limit int) ([]*types.ContextItem, error) {
	query := `SELECT ` + contextItemColumns + ` FROM context_items WHERE fast_embedding_status = ? AND embedding_status = ?`
	args := []interface{}{types.EmbeddingComplete, types.EmbeddingPending}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding items needing quality embedding: %w", err)
	}
	defer rows.Close()

	var out []*types.ContextItem
	for rows.Next() {
		item, err := scanContextItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ItemsMisclassifiedComplete finds items marked embedding_status=complete
// with no corresponding chunk row — a crash between the write and the
// status update — so the upgrade process can requeue them instead of
// leaving them permanently unembedded.
func (s *Store) ItemsMisclassifiedComplete(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM context_items c
		WHERE c.embedding_status = ?
		  AND NOT EXISTS (SELECT 1 FROM embedding_chunks e WHERE e.item_id = c.id)
	`, types.EmbeddingComplete)
	if err != nil {
		return nil, fmt.Errorf("finding misclassified items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
