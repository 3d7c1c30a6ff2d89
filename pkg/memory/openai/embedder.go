// Package openai provides a memory.Embedder backed by the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// Embedder implements memory.Embedder using OpenAI embeddings.
type Embedder struct {
	client *goopenai.Client
	model  string
}

// NewEmbedder creates an OpenAI embedder. baseURL may be empty.
func NewEmbedder(apiKey, baseURL, model string) *Embedder {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: goopenai.NewClientWithConfig(cfg), model: model}
}

// Embed converts a text string into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding for model %s", e.model)
	}
	return resp.Data[0].Embedding, nil
}
