// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini provides a Google Gemini oracle for shopper.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jllopis/shopper/pkg/llm"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the request nor the provider set a model.
const DefaultModel = "gemini-2.0-flash"

// Provider implements llm.Provider for Google Gemini API.
type Provider struct {
	client *genai.Client
	model  string
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

// New creates a new Gemini provider.
// When apiKey is empty the SDK reads GOOGLE_API_KEY or GEMINI_API_KEY.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p := &Provider{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents, systemInstruction := convertMessages(req.Messages)
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, buildConfig(req, systemInstruction))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, llm.StatusError("gemini", apiErr.Code, err)
		}
		return nil, llm.StatusError("gemini", 0, err)
	}
	return convertResponse(resp), nil
}

// Name identifies the provider in span attributes.
func (p *Provider) Name() string { return "gemini" }

func buildConfig(req llm.ChatRequest, systemInstruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if len(req.Stop) > 0 {
		config.StopSequences = req.Stop
	}
	return config
}

func convertMessages(messages []llm.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func convertResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	result := &llm.ChatResponse{}
	if resp == nil {
		return result
	}
	if resp.UsageMetadata != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			result.Content += part.Text
		}
	}
	return result
}

var _ llm.Provider = (*Provider)(nil)
