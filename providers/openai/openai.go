// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an OpenAI chat completions oracle for shopper.
package openai

import (
	"context"
	"errors"

	"github.com/jllopis/shopper/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when neither the request nor the provider set a model.
const DefaultModel = "gpt-4o-mini"

// Provider implements llm.Provider for OpenAI API.
type Provider struct {
	client  openai.Client
	model   string
	reqOpts []option.RequestOption
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

// WithBaseURL sets a custom base URL (for Azure OpenAI or proxies).
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

// New creates a new OpenAI provider.
// API key is read from OPENAI_API_KEY environment variable unless WithAPIKey is given.
func New(opts ...Option) *Provider {
	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.reqOpts...)
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	return convertResponse(completion), nil
}

// Name identifies the provider in span attributes.
func (p *Provider) Name() string { return "openai" }

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llm.StatusError("openai", apiErr.StatusCode, err)
	}
	return llm.StatusError("openai", 0, err)
}

func convertMessage(msg llm.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content)
	case llm.RoleAssistant:
		return openai.AssistantMessage(msg.Content)
	default:
		return openai.UserMessage(msg.Content)
	}
}

func convertResponse(completion *openai.ChatCompletion) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) > 0 {
		resp.Content = completion.Choices[0].Message.Content
	}
	return resp
}

var _ llm.Provider = (*Provider)(nil)
