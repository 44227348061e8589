package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "user not found with id did:privy:abc"}
//
// with one deliberate exception: when X rejects a tweet, the client gets X's own
// status code and X's own JSON body under "error", so callers see exactly what
// the platform said:
//   {"error": {"title": "Forbidden", "status": 403, ...}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/x-oauth/internal/apperror"
	"github.com/sakif/x-oauth/internal/twitter"
)

// ErrorResponse is the standard error format returned by the JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// upstreamErrorResponse relays a platform rejection body unchanged.
type upstreamErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE the body is written.
// Once the body starts, any header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation     → 400 validation_error
//	ErrAuthentication → 401 authentication_error
//	ErrNotFound       → 404 not_found
//	ErrUpstream       → the platform's status, the platform's body
//	ErrTransport      → 500 transport_error, with the failure message
//	anything else     → 500 internal_error, details withheld
//
// errors.Is walks the whole chain, so a service wrapping with
// fmt.Errorf("service/tweet: %w", appErr) still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrUpstream):
			status = appErr.Status
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, upstreamErrorResponse{Error: twitter.AsJSON(appErr.Body)})
			return
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrAuthentication):
			status = http.StatusUnauthorized
			errorType = "authentication_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrTransport):
			errorType = "transport_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — return a generic 500.
	// The raw message might contain file paths, SQL, or upstream details.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
