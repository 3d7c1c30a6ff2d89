package llm

import (
	"context"
	"strings"
	"sync/atomic"
)

// MockProvider answers every request with Response, or fails with Err.
// ChatFunc, when set, takes precedence over both. It backs the "mock"
// llm.provider used by the offline demo.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	calls atomic.Int64
}

// Name identifies the provider in span attributes.
func (m *MockProvider) Name() string { return "mock" }

// Calls reports how many requests the provider has received.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.calls.Add(1)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{Content: m.Response, Usage: estimateUsage(req, m.Response)}, nil
}

// estimateUsage counts whitespace separated words as tokens.
func estimateUsage(req ChatRequest, reply string) Usage {
	var prompt int
	for _, msg := range req.Messages {
		prompt += len(strings.Fields(msg.Content))
	}
	completion := len(strings.Fields(reply))
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}
