package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once a ScriptedMockProvider runs out of responses.
var ErrScriptExhausted = errors.New("scripted mock: no more responses available")

// ScriptedMockProvider returns a pre-defined sequence of responses.
// Useful for driving the tool-routing loop turn by turn in tests.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// Repeat keeps returning the last response once the script is exhausted.
	Repeat bool
	// CallCount tracks how many times Chat has been called
	CallCount int
	// Requests records every request received, in order.
	Requests []ChatRequest
	last     string
}

// NewScriptedMockProvider creates a new ScriptedMockProvider.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{
		Responses: responses,
	}
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	var content string
	switch {
	case len(s.Responses) > 0:
		content = s.Responses[0]
		s.Responses = s.Responses[1:]
		s.last = content
	case s.Repeat && s.last != "":
		content = s.last
	default:
		return nil, ErrScriptExhausted
	}

	return &ChatResponse{Content: content, Usage: estimateUsage(req, content)}, nil
}

func (s *ScriptedMockProvider) Name() string { return "scripted" }

// AddResponse appends a response to the queue.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, response)
}

// PeekNext returns the next response to be returned, or empty string.
func (s *ScriptedMockProvider) PeekNext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return ""
	}
	return s.Responses[0]
}

// Calls returns how many times Chat was invoked.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}

// LastRequest returns the most recent request, if any.
func (s *ScriptedMockProvider) LastRequest() (ChatRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return ChatRequest{}, false
	}
	return s.Requests[len(s.Requests)-1], true
}
