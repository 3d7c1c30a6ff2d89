// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	stderrors "errors"

	"github.com/jllopis/shopper/pkg/errors"
)

// WrapLLMError wraps an oracle error with the model in use. A typed
// provider error that is not recoverable keeps its own code.
func WrapLLMError(err error, model string) *errors.Error {
	if err == nil {
		return nil
	}
	var typed *errors.Error
	if stderrors.As(err, &typed) && !typed.Recoverable {
		return typed.WithContext("model", model).WithAttribute("llm.model", model)
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("llm.model", model).
		WithRecoverable(true)
}

// WrapContextError maps a finished run context to TIMEOUT or CONTEXT_LOST.
func WrapContextError(err error, operation string) *errors.Error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "run deadline exceeded", err).
			WithContext("operation", operation).
			WithRecoverable(false)
	}
	return errors.New(errors.CodeContextLost, "run canceled", err).
		WithContext("operation", operation).
		WithRecoverable(false)
}

// NewBudgetExhaustedError reports a run that used every turn.
func NewBudgetExhaustedError(maxTurns int) *errors.Error {
	return errors.Newf(errors.CodeBudgetExhausted, "turn budget of %d exhausted without a final answer", maxTurns).
		WithContext("max_turns", maxTurns).
		WithRecoverable(false)
}

// NewParseBudgetError reports too many consecutive unparsable replies.
func NewParseBudgetError(attempts int, last error) *errors.Error {
	return errors.New(errors.CodeParse, "oracle output could not be parsed", last).
		WithContext("attempts", attempts).
		WithRecoverable(false)
}

// NewInvalidInputError reports a request the agent refuses to run.
func NewInvalidInputError(msg string, cause error) *errors.Error {
	return errors.New(errors.CodeInvalidInput, msg, cause).
		WithRecoverable(false)
}

// NewBlockedInputError reports a goal rejected by a guardrail.
func NewBlockedInputError(guardrail, reason string) *errors.Error {
	return errors.New(errors.CodeInvalidInput, "input blocked: "+reason, nil).
		WithContext("guardrail", guardrail).
		WithRecoverable(false)
}
