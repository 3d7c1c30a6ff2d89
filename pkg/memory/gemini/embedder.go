// Package gemini provides a memory.Embedder backed by Gemini embedding models.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// Embedder implements memory.Embedder with the Gemini embeddings API.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder creates a Gemini embedder.
func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: client, model: model}, nil
}

// Embed converts a text string into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding for model %s", e.model)
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	return e.client.Close()
}
