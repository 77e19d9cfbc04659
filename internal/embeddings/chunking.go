package embeddings

import "strings"

// ChunkConfig controls how embedding text is split into overlapping
// windows (spec.md §4.5 "Chunking contract").
type ChunkConfig struct {
	MaxChars     int
	Overlap      int
	MinChunkSize int
}

// ollamaChunkConfig fits nomic-embed-text's large context window.
func ollamaChunkConfig() ChunkConfig {
	return ChunkConfig{MaxChars: 2000, Overlap: 200, MinChunkSize: 100}
}

// sentenceTransformerChunkConfig fits smaller, MiniLM-class models.
func sentenceTransformerChunkConfig() ChunkConfig {
	return ChunkConfig{MaxChars: 800, Overlap: 100, MinChunkSize: 50}
}

// Chunk is one window of chunked text.
type Chunk struct {
	Text        string
	Index       int
	StartOffset int
	EndOffset   int
}

// ChunkText splits text into overlapping windows per cfg, cutting at word
// boundaries and dropping undersized trailing windows (unless they're the
// final tail).
func ChunkText(text string, cfg ChunkConfig) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= cfg.MaxChars {
		return []Chunk{{Text: text, Index: 0, StartOffset: 0, EndOffset: len(text)}}
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := start + cfg.MaxChars
		if end > len(text) {
			end = len(text)
		}
		if end < len(text) {
			end = findWordBoundary(text, end, start+cfg.MinChunkSize)
		}

		chunkText := text[start:end]
		if len(chunkText) >= cfg.MinChunkSize || start+len(chunkText) >= len(text) {
			chunks = append(chunks, Chunk{Text: chunkText, Index: index, StartOffset: start, EndOffset: end})
			index++
		}

		nextStart := end - cfg.Overlap
		if nextStart <= start {
			start = end
		} else {
			start = nextStart
		}

		if end >= len(text) {
			break
		}
	}

	return chunks
}

// findWordBoundary searches backward from target for whitespace or
// sentence punctuation, never going earlier than minPos.
func findWordBoundary(text string, target, minPos int) int {
	if minPos < 0 {
		minPos = 0
	}
	for i := target; i >= minPos; i-- {
		if i >= len(text) {
			continue
		}
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c == '.' || c == '!' || c == '?' || c == ';' || c == ',' {
			if i+1 < len(text) {
				return i + 1
			}
			return len(text)
		}
	}
	return target
}

