// Package apierrors writes HTTP error responses in one format: {"error": {"code": "...", "message": "..."}}.
// Every handler and middleware reports errors through it.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/security"
)

// Machine-readable error codes.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes statusCode with the standard error body.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// ValidationError writes 400.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthorized writes 401.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden writes 403.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotFound writes 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict writes 409.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// Unavailable writes 503.
func Unavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, message)
}

// InternalError writes 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// Status returns the HTTP status and code for err. Unknown errors are 500.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, security.ErrUnauthenticated), errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, service.ErrAlreadyEnded):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, service.ErrForbidden), errors.Is(err, db.ErrNoTenant):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, CodeValidationError
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// FromError writes the response for err. Internal errors get a generic message; their text is for logs only.
func FromError(w http.ResponseWriter, err error) {
	status, code := Status(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal error"
	case http.StatusServiceUnavailable:
		msg = "service temporarily unavailable"
	}
	WriteError(w, status, code, msg)
}

// WriteJSON writes v as a JSON response with statusCode.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
