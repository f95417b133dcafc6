package api

import (
	"encoding/json"
	"net/http"

	"github.com/hostbridge/hostbridge-core/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeUnavailable  = "capability_unavailable"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// resultStatus maps a failed command result to its HTTP status.
func resultStatus(kind session.ErrorKind) int {
	switch kind {
	case session.ErrNotFound:
		return http.StatusNotFound
	case session.ErrAlreadyExists, session.ErrAlreadyRunning, session.ErrAlreadyConnected:
		return http.StatusConflict
	case session.ErrInvalidInput:
		return http.StatusBadRequest
	case session.ErrCapabilityUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeResult translates a command result into an HTTP response. The body
// is always the result itself — success flag, error kind, message, data —
// so callers demultiplex failures on the kind; only the HTTP status varies.
func writeResult(w http.ResponseWriter, successStatus int, res session.Result) {
	if res.Success {
		writeJSON(w, successStatus, res)
		return
	}
	writeJSON(w, resultStatus(res.Error), res)
}
