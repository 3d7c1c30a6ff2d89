// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools provides the closed capability registry used by the agent
// loop, plus helpers to build capabilities and coerce their inputs.
package tools

import (
	"context"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
)

// HandlerFunc is the body of a function-backed tool.
type HandlerFunc func(ctx context.Context, input any) core.Result

// Func is a core.Tool backed by a plain function.
type Func struct {
	name        string
	description string
	params      []core.Parameter
	handler     HandlerFunc
}

// NewFunc builds a function-backed tool. When params is empty the tool takes
// a single free-text "input" parameter.
func NewFunc(name, description string, params []core.Parameter, handler HandlerFunc) *Func {
	if len(params) == 0 {
		params = []core.Parameter{TextParameter("")}
	}
	return &Func{name: name, description: description, params: params, handler: handler}
}

// TextParameter returns the single free-text parameter used by loop-facing tools.
func TextParameter(description string) core.Parameter {
	return core.Parameter{Name: "input", Type: core.ParamString, Description: description, Required: true}
}

// Name returns the tool name.
func (f *Func) Name() string { return f.name }

// Description returns the tool description shown to the oracle.
func (f *Func) Description() string { return f.description }

// Parameters returns the tool parameters.
func (f *Func) Parameters() []core.Parameter {
	out := make([]core.Parameter, len(f.params))
	copy(out, f.params)
	return out
}

// Invoke runs the handler, converting panics into failures.
func (f *Func) Invoke(ctx context.Context, input any) (res core.Result) {
	if f.handler == nil {
		return core.Fail(errors.CodeToolFailure, "tool %s has no handler", f.name)
	}
	defer func() {
		if r := recover(); r != nil {
			res = core.Fail(errors.CodeToolFailure, "tool %s panicked: %v", f.name, r)
		}
	}()
	return f.handler(ctx, input)
}
