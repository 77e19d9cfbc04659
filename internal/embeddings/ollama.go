package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ollamaModelDimensions holds the known output width of common Ollama
// embedding models, grounded on the model registry in
// original_source/cli/src/embeddings/types.rs's `ollama_models` table.
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":    768,
	"mxbai-embed-large":   1024,
	"all-minilm":          384,
	"snowflake-arctic-embed": 1024,
}

const defaultOllamaDimensions = 768

// OllamaProvider is a QualityProvider backed by a local Ollama server's
// /api/embed endpoint (original_source/cli/src/embeddings/ollama.rs).
type OllamaProvider struct {
	client     *http.Client
	endpoint   string
	model      string
	dimensions int
}

// NewOllamaProvider constructs a provider against endpoint (e.g.
// "http://localhost:11434") for the given model name.
func NewOllamaProvider(endpoint, model string) *OllamaProvider {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	dims, ok := ollamaModelDimensions[model]
	if !ok {
		dims = defaultOllamaDimensions
	}
	return &OllamaProvider{
		client:     &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		model:      model,
		dimensions: dims,
	}
}

func (p *OllamaProvider) Dimensions() int { return p.dimensions }
func (p *OllamaProvider) Model() string   { return p.model }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed requests one embedding from Ollama's /api/embed endpoint.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding failed: status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing ollama response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned from ollama")
	}
	return out.Embeddings[0], nil
}

// IsAvailable checks whether the Ollama server is reachable and serving
// the configured model, per original_source's is_available check.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == p.model || len(m.Name) > len(p.model) && m.Name[:len(p.model)+1] == p.model+":" {
			return true
		}
	}
	return false
}
