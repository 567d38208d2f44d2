package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anders/showsync/internal/sync"
)

// Error code constants for structured API error responses. Checksum mismatch
// and unknown device both map to 400 but keep distinct codes so clients can
// tell them apart without parsing messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeChecksumMismatch = "checksum_mismatch"
	ErrCodeDeviceUnknown    = "device_unknown"
	ErrCodeForbidden        = "forbidden"
	ErrCodeConflict         = "conflict"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
)

// APIError represents a structured error returned by the API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error: APIError{Code: code, Message: message},
	}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}

// writeSyncError maps a coordinator error kind to its HTTP status and code.
func writeSyncError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sync.ErrDeviceMissing), errors.Is(err, sync.ErrPayloadInvalid):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, sync.ErrChecksumMismatch):
		writeError(w, http.StatusBadRequest, ErrCodeChecksumMismatch, err.Error())
	case errors.Is(err, sync.ErrDeviceUnknown):
		writeError(w, http.StatusBadRequest, ErrCodeDeviceUnknown, err.Error())
	case errors.Is(err, sync.ErrReadOnly), errors.Is(err, sync.ErrNotSelf):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, sync.ErrConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		logFor(r.Context()).Error("sync operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
