package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const fastDimensions = 256

// FastModel is a static word-averaging embedding model: every distinct
// token maps to a fixed pseudo-random unit vector (derived from its FNV
// hash, no learned weights), and a text's embedding is the normalized
// average of its tokens' vectors. This stands in for a loaded
// static-embedding model (spec.md §4.5's "static word-average model");
// the loader for a real pretrained model is out of scope (spec.md §1), so
// this repo ships the hashing-trick fallback instead of vendoring model
// weights.
type FastModel struct {
	dimensions int
}

// NewFastModel constructs the fast-tier provider. Loading is instantaneous
// since there are no weights to read from disk.
func NewFastModel() *FastModel {
	return &FastModel{dimensions: fastDimensions}
}

func (m *FastModel) Dimensions() int { return m.dimensions }

// Embed tokenizes text on whitespace, hashes each token into a unit
// vector, and returns the L2-normalized average — sub-millisecond, no
// I/O, matching spec.md §4.5's target latency.
func (m *FastModel) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens := strings.Fields(strings.ToLower(text))
	sum := make([]float64, m.dimensions)
	if len(tokens) == 0 {
		return toFloat32(sum), nil
	}

	for _, tok := range tokens {
		vec := hashTokenVector(tok, m.dimensions)
		for i, v := range vec {
			sum[i] += v
		}
	}
	for i := range sum {
		sum[i] /= float64(len(tokens))
	}
	normalize(sum)
	return toFloat32(sum), nil
}

// hashTokenVector derives a deterministic unit vector for a token: seed
// an FNV-1a hash per dimension offset so the same token always maps to
// the same vector, and different tokens scatter roughly uniformly.
func hashTokenVector(token string, dims int) []float64 {
	vec := make([]float64, dims)
	for i := 0; i < dims; i++ {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map the hash into [-1, 1).
		vec[i] = (float64(sum%2000000) / 1000000.0) - 1.0
	}
	normalize(vec)
	return vec
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
