package llm

import (
	"net/http"

	"github.com/jllopis/shopper/pkg/errors"
)

// StatusError classifies a failed provider call by the HTTP status the
// backend answered with. Status 0 means the request never got a response.
// Throttling and server faults stay recoverable so the agent loop can
// spend another turn; rejected credentials and bad requests do not.
func StatusError(provider string, status int, err error) *errors.Error {
	var e *errors.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = errors.New(errors.CodeUnauthorized, provider+" rejected the credentials", err).
			WithRecoverable(false)
	case status == http.StatusTooManyRequests:
		e = errors.New(errors.CodeRateLimit, provider+" rate limit reached", err).
			WithRecoverable(true)
	case status == 0 || status == http.StatusRequestTimeout || status >= 500:
		e = errors.New(errors.CodeLLMError, provider+" call failed", err).
			WithRecoverable(true)
	default:
		e = errors.New(errors.CodeLLMError, provider+" rejected the request", err).
			WithRecoverable(false)
	}
	e = e.WithContext("provider", provider).WithAttribute("llm.provider", provider)
	if status != 0 {
		e = e.WithContext("status", status)
	}
	return e
}
