// Package embeddings implements the two-tier embedding system: a
// synchronous, in-process fast tier used inline on every context item
// save, and an HTTP-backed quality tier used by a detached background
// upgrade process (spec.md §4.5).
package embeddings

import "context"

// FastProvider computes an embedding synchronously and fast enough to run
// inline on the save path without noticeable latency.
type FastProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// QualityProvider computes a higher-fidelity embedding, typically via a
// network round trip, run only from the background upgrade process.
type QualityProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}

// ChunkConfigFor returns the chunking parameters appropriate to a quality
// provider's model class: larger windows for large-context models
// (Ollama-served models), smaller for sentence-transformer-class models
// served over the generic HTTP/JSON provider.
func ChunkConfigFor(p QualityProvider) ChunkConfig {
	if _, ok := p.(*OllamaProvider); ok {
		return ollamaChunkConfig()
	}
	return sentenceTransformerChunkConfig()
}
