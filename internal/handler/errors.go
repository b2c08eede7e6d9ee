package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ogembed/api/internal/embed"
)

// Error codes surfaced in the error envelope.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeDependency   = "DEPENDENCY_UNAVAILABLE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope. Exported for the
// rate-limit middleware, which rejects before reaching a handler.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{Error: apiError{Code: code, Message: message}})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	WriteError(w, status, code, message)
}

// writeStoreError maps embed store errors onto HTTP statuses. Anything
// outside the expected taxonomy means a backing dependency failed
// mid-request; per the fail-closed policy that is a 503, not a retry.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *embed.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, verr.Error())
	case errors.Is(err, embed.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "embed not found")
	case errors.Is(err, embed.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "owner secret does not match")
	default:
		slog.Error("embed store error",
			"error", err.Error(),
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeError(w, http.StatusServiceUnavailable, ErrCodeDependency, "storage is temporarily unavailable")
	}
}
