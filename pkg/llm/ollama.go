package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the address of a local Ollama daemon.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider implements the Provider interface for Ollama.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllama creates a new OllamaProvider.
func NewOllama(baseURL, model string) (*OllamaProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return &OllamaProvider{
		client: api.NewClient(u, &http.Client{Timeout: 120 * time.Second}),
		model:  model,
	}, nil
}

// Chat sends a non-streaming chat request to Ollama.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]api.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	stream := false
	oReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  ollamaOptions(req),
	}

	var (
		content strings.Builder
		final   api.ChatResponse
	)
	err := p.client.Chat(ctx, oReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return nil, StatusError("ollama", se.StatusCode, err)
		}
		return nil, StatusError("ollama", 0, err)
	}

	return &ChatResponse{
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
			TotalTokens:      final.PromptEvalCount + final.EvalCount,
		},
	}, nil
}

// Name identifies the provider in span attributes.
func (p *OllamaProvider) Name() string { return "ollama" }

func ollamaOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		opts["stop"] = req.Stop
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
