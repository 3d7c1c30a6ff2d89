package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jllopis/shopper/pkg/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("http.encode.failed", slog.String("error", err.Error()))
	}
}

// writeError renders {"error": {"code", "message"}} with the status carried
// by the typed error.
func writeError(w http.ResponseWriter, err error) {
	e := errors.As(err)
	msg := e.Message
	if e.Code == errors.CodeInternal && e.Err != nil {
		msg = e.Err.Error()
	}
	writeJSON(w, statusFor(e), map[string]errorBody{
		"error": {Code: string(e.Code), Message: msg},
	})
}

func statusFor(e *errors.Error) int {
	if e.StatusCode >= 400 && e.StatusCode < 600 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}
