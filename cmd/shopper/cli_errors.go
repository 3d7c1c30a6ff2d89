// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jllopis/shopper/pkg/errors"
)

// CLIError wraps an errors.Error with a hint for the terminal user.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error.
func (e *CLIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// PrintError prints the error to stderr, as JSON when asJSON is set.
func (e *CLIError) PrintError(asJSON bool) {
	if e.Err == nil {
		e.Err = errors.New(errors.CodeInternal, "unknown error", nil)
	}
	if asJSON {
		body := map[string]string{
			"code":    string(e.Err.Code),
			"message": e.message(),
		}
		if e.Hint != "" {
			body["hint"] = e.Hint
		}
		payload, _ := json.Marshal(map[string]any{"error": body})
		fmt.Fprintln(os.Stderr, string(payload))
		return
	}

	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.Err.Code, e.message())
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

func (e *CLIError) message() string {
	switch {
	case e.Err.Err == nil:
		return e.Err.Message
	case e.Err.Code == errors.CodeInternal:
		return e.Err.Err.Error()
	default:
		return e.Err.Message + ": " + e.Err.Err.Error()
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithRecoverable(false)
	return NewCLIError(e, "run 'shopper help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check the config file, SHOPPER_* variables and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// hintFor suggests a next step for the codes a run commonly ends with.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeBudgetExhausted:
		return "rephrase the question or raise agent.max_turns"
	case errors.CodeParse:
		return "the model is not following the reasoning format; try another llm.model"
	case errors.CodeLLMError:
		return "check llm.provider, llm.base_url and llm.api_key"
	case errors.CodeUnauthorized:
		return "the model provider rejected llm.api_key"
	case errors.CodeRateLimit:
		return "the model provider is throttling requests; wait and retry"
	case errors.CodeTimeout:
		return "try increasing the timeout with --timeout or agent.timeout_seconds"
	case errors.CodeMemoryError:
		return "check memory.backend settings or run with -no-memory"
	case errors.CodeUnavailable:
		return "enable preference memory with --set memory.enabled=true"
	default:
		return ""
	}
}

// toCLIError converts any error into a CLIError with a matching hint.
func toCLIError(err error) *CLIError {
	if ce, ok := err.(*CLIError); ok {
		return ce
	}
	e := errors.As(err)
	return NewCLIError(e, hintFor(e.Code))
}
