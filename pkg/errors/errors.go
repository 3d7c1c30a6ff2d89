// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for shopper.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeContextLost indicates the caller context was canceled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates rate limiting was triggered.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates authorization failed.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeMemoryError indicates a preference memory error.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeParse indicates oracle output could not be parsed into a directive.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeBudgetExhausted indicates the agent ran out of turns.
	CodeBudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"

	// CodeUnavailable indicates a dependency is temporarily unavailable.
	CodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int // HTTP status for API responses
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Attributes  map[string]string      `json:"attributes,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		StatusCode  int                    `json:"status_code"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Attributes:  e.Attributes,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf creates an Error without a cause and a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// As converts an error to an *Error, searching the wrap chain first and
// wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeUnauthorized:
		return 401
	case CodeInvalidInput, CodeParse:
		return 400
	case CodeTimeout:
		return 408
	case CodeRateLimit:
		return 429
	case CodeUnavailable, CodeLLMError:
		return 503
	case CodeBudgetExhausted:
		return 422
	default:
		return 500
	}
}
