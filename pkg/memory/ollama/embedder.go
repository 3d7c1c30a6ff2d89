// Package ollama provides a memory.Embedder backed by a local Ollama daemon.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "nomic-embed-text"

// Embedder implements the memory.Embedder interface using Ollama.
type Embedder struct {
	client *api.Client
	model  string
}

// NewEmbedder creates a new Ollama Embedder.
func NewEmbedder(baseURL, model string) (*Embedder, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: 60 * time.Second}),
		model:  model,
	}, nil
}

// Embed converts a text string into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding api call failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding for model %s", e.model)
	}
	return resp.Embeddings[0], nil
}
