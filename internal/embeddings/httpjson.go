package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPJSONProvider is a QualityProvider for any HuggingFace-text-
// embeddings-inference-compatible HTTP endpoint: POST {"inputs": text} to
// the configured URL, with an optional bearer token (original_source's
// huggingface.rs, generalized to a config-driven endpoint rather than one
// hardcoded to the hosted HF Inference API).
type HTTPJSONProvider struct {
	client     *http.Client
	endpoint   string
	model      string
	token      string
	dimensions int
}

// NewHTTPJSONProvider constructs a provider against endpoint, which
// should accept {"inputs": "<text>"} and return either a flat float array
// or a singly- or doubly-nested one.
func NewHTTPJSONProvider(endpoint, model, token string, dimensions int) *HTTPJSONProvider {
	return &HTTPJSONProvider{
		client:     &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		model:      model,
		token:      token,
		dimensions: dimensions,
	}
}

func (p *HTTPJSONProvider) Dimensions() int { return p.dimensions }
func (p *HTTPJSONProvider) Model() string   { return p.model }

type httpJSONRequest struct {
	Inputs  string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// Embed posts text to the endpoint and unwraps whichever of the three
// response shapes the server returned (flat vector, one level of
// nesting, or two — some backends wrap a single input's result in a
// batch-shaped array).
func (p *HTTPJSONProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := httpJSONRequest{Inputs: text}
	reqBody.Options.WaitForModel = true
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed: status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return unwrapEmbeddingShape(raw)
}

func unwrapEmbeddingShape(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var doubleNested [][][]float32
	if err := json.Unmarshal(raw, &doubleNested); err == nil && len(doubleNested) > 0 && len(doubleNested[0]) > 0 {
		return doubleNested[0][0], nil
	}

	return nil, fmt.Errorf("unrecognized embedding response shape")
}
