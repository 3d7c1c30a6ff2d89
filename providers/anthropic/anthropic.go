// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an Anthropic Claude oracle for shopper.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jllopis/shopper/pkg/llm"
)

// DefaultModel is used when neither the request nor the provider set a model.
const DefaultModel = "claude-sonnet-4-20250514"

// Provider implements llm.Provider for Anthropic Claude API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	reqOpts   []option.RequestOption
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(tokens int64) Option {
	return func(p *Provider) {
		if tokens > 0 {
			p.maxTokens = tokens
		}
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.reqOpts = append(p.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		if apiKey != "" {
			p.reqOpts = append(p.reqOpts, option.WithAPIKey(apiKey))
		}
	}
}

// WithRequestOptions appends raw client options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, opts...)
	}
}

// New creates a new Anthropic provider.
// API key is read from ANTHROPIC_API_KEY environment variable unless WithAPIKey is given.
func New(opts ...Option) *Provider {
	p := &Provider{
		model:     DefaultModel,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = anthropic.NewClient(p.reqOpts...)
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	system, messages := convertMessages(req.Messages)

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, llm.StatusError("anthropic", apiErr.StatusCode, err)
		}
		return nil, llm.StatusError("anthropic", 0, err)
	}
	return convertResponse(message), nil
}

// Name identifies the provider in span attributes.
func (p *Provider) Name() string { return "anthropic" }

// convertMessages extracts the system prompt and merges consecutive
// same-role turns, which the Messages API rejects.
func convertMessages(msgs []llm.Message) (string, []anthropic.MessageParam) {
	var system []string
	type turn struct {
		role llm.Role
		text []string
	}
	var turns []turn
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		role := llm.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, msg.Content)
			continue
		}
		turns = append(turns, turn{role: role, text: []string{msg.Content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func convertResponse(message *anthropic.Message) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}
	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	resp.Content = text.String()
	return resp
}

var _ llm.Provider = (*Provider)(nil)
