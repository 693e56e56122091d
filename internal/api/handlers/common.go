// Package handlers provides HTTP request handlers for the portscope API.
// This file contains the response, request parsing and error mapping helpers
// shared by all handlers.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/anstrom/portscope/internal/api/middleware"
	"github.com/anstrom/portscope/internal/errors"
)

// DefaultMaxRequestSize bounds request bodies when no limit is configured.
const DefaultMaxRequestSize = 1024 * 1024

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but don't try to write another response
		slog.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response. Coded errors expose only their
// message, so a host resolution failure reads "Could not resolve host: x".
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetRequestID(r),
	}

	var scanErr *errors.ScanError
	if stderrors.As(err, &scanErr) {
		response.Error = scanErr.Message
		response.Code = string(scanErr.Code)
	}

	writeJSON(w, r, statusCode, response)
}

// statusForError maps coded errors onto HTTP statuses.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation,
		errors.CodeInvalidPortRange,
		errors.CodeHostUnresolved,
		errors.CodeTargetInvalid,
		errors.CodeUnsupportedProtocol:
		return http.StatusBadRequest
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeRegistryUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeTimeout, errors.CodeCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes the request body into dest. Unknown fields are ignored
// and the body is capped at maxSize bytes.
func parseJSON(w http.ResponseWriter, r *http.Request, dest interface{}, maxSize int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewScanError(errors.CodeValidation,
				fmt.Sprintf("request body too large (max %d bytes)", maxSize))
		case stderrors.Is(err, io.EOF):
			return errors.NewScanError(errors.CodeValidation, "request body is empty")
		default:
			return errors.WrapScanError(errors.CodeValidation, fmt.Sprintf("invalid JSON: %v", err), err)
		}
	}

	return nil
}
