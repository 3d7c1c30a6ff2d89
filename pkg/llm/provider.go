// Package llm defines the oracle contract the agent loop talks to, the
// Ollama adapter, and in-process mocks for tests and offline demos.
// Hosted backends live under providers/.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the oracle.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion request. An empty Model falls back
// to the provider default.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	// Stop ends generation early on providers that support it. The agent
	// uses it to keep the oracle from inventing its own observations.
	Stop      []string `json:"stop,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage counts tokens as reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the oracle: text in, text out.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Named is implemented by providers that report their backend name.
type Named interface {
	Name() string
}

// NameOf returns the backend name of p, or "" when it does not say.
func NameOf(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return ""
}

// Complete sends a single prompt with an optional system message.
func Complete(ctx context.Context, p Provider, model, system, prompt string) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	resp, err := p.Chat(ctx, ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
