// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
)

// Registry is an ordered, closed set of tools keyed by unique name.
type Registry struct {
	mu    sync.RWMutex
	order []core.Tool
	index map[string]core.Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...core.Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]core.Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for tests
// and static wiring.
func MustRegistry(tools ...core.Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register appends a tool. Empty and duplicate names are rejected.
func (r *Registry) Register(t core.Tool) error {
	if t == nil {
		return errors.New(errors.CodeInvalidInput, "tool is nil", nil)
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "tool name is required", nil)
	}
	key := normalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[string]core.Tool)
	}
	if _, exists := r.index[key]; exists {
		return errors.Newf(errors.CodeInvalidInput, "duplicate tool name %q", name).
			WithContext("tool", name)
	}
	r.index[key] = t
	r.order = append(r.order, t)
	return nil
}

// Lookup resolves a tool by name. Surrounding whitespace, quotes, backticks
// and letter case are ignored. Unknown names return a NOT_FOUND error.
func (r *Registry) Lookup(name string) (core.Tool, error) {
	key := normalizeName(name)
	r.mu.RLock()
	t, ok := r.index[key]
	r.mu.RUnlock()
	if !ok || key == "" {
		return nil, errors.Newf(errors.CodeNotFound, "unknown tool %q", strings.TrimSpace(name)).
			WithContext("available", r.Names()).
			WithRecoverable(true)
	}
	return t, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, t.Name())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe renders "name: description" lines for prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, t := range r.Tools() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", t.Name(), strings.TrimSpace(t.Description()))
		if params := describeParams(t.Parameters()); params != "" {
			fmt.Fprintf(&b, " Input: %s", params)
		}
	}
	return b.String()
}

func describeParams(params []core.Parameter) string {
	if len(params) == 1 && params[0].Name == "input" {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		part := fmt.Sprintf("%s (%s", p.Name, p.Type)
		if p.Required {
			part += ", required"
		}
		part += ")"
		parts = append(parts, part)
	}
	return "JSON object with " + strings.Join(parts, ", ") + "."
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`'\"*[]() \t")
	return strings.ToLower(strings.TrimSpace(name))
}
