// Package core defines the shared contracts between the agent loop and its
// capabilities.
package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jllopis/shopper/pkg/errors"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
	ParamBoolean ParamType = "boolean"
)

// Parameter describes one named input of a tool.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
}

// Tool is a named capability the agent loop can invoke.
//
// Invoke never returns a Go error: failures are carried inside the Result so
// the loop can feed them back to the oracle as observations.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Invoke(ctx context.Context, input any) Result
}

// Failure is a structured, human-readable capability failure.
type Failure struct {
	Code   errors.ErrorCode `json:"code"`
	Reason string           `json:"error"`
}

// Result is the outcome of a tool invocation.
type Result struct {
	Output  any
	Failure *Failure
}

// OK wraps a successful output.
func OK(output any) Result {
	return Result{Output: output}
}

// Fail builds a failed Result.
func Fail(code errors.ErrorCode, format string, args ...any) Result {
	return Result{Failure: &Failure{Code: code, Reason: fmt.Sprintf(format, args...)}}
}

// FailFrom converts an error into a failed Result, keeping the code of typed errors.
func FailFrom(err error) Result {
	if err == nil {
		return Result{}
	}
	e := errors.As(err)
	code := e.Code
	if code == errors.CodeInternal {
		code = errors.CodeToolFailure
	}
	reason := err.Error()
	if typed, ok := err.(*errors.Error); ok {
		reason = typed.Message
		if typed.Err != nil {
			reason += ": " + typed.Err.Error()
		}
	}
	return Result{Failure: &Failure{Code: code, Reason: reason}}
}

// Failed reports whether the result carries a failure.
func (r Result) Failed() bool { return r.Failure != nil }

// Observation renders the result as the text fed back to the oracle.
// Strings pass through untouched; everything else is JSON encoded.
// Failures render as {"error": "<reason>"}.
func (r Result) Observation() string {
	if r.Failure != nil {
		data, err := json.Marshal(map[string]string{"error": r.Failure.Reason})
		if err != nil {
			return "error: " + r.Failure.Reason
		}
		return string(data)
	}
	switch v := r.Output.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	}
	data, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprint(r.Output)
	}
	return string(data)
}
