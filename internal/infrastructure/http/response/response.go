// Package response renders the API's JSON bodies and maps domain errors to
// HTTP status codes.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskloop/taskloop/internal/domain"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// JSON sends data with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 Created response with JSON data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error sends an error body with the given status code.
func Error(w http.ResponseWriter, statusCode int, detail string) {
	JSON(w, statusCode, ErrorResponse{Detail: detail})
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, detail)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, detail string) {
	Error(w, http.StatusUnauthorized, detail)
}

// Forbidden sends a 403 Forbidden error.
func Forbidden(w http.ResponseWriter, detail string) {
	Error(w, http.StatusForbidden, detail)
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, http.StatusNotFound, resource+" not found")
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, detail string) {
	Error(w, http.StatusConflict, detail)
}

// Unavailable sends a 503 Service Unavailable error.
func Unavailable(w http.ResponseWriter, detail string) {
	Error(w, http.StatusServiceUnavailable, detail)
}

// InternalError sends a 500. The actual error is logged server-side; the
// client gets a generic message so internals never leak.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
	}
	Error(w, http.StatusInternalServerError, "an internal error occurred")
}

// FromDomainError maps domain errors to HTTP responses. Not-found covers both
// absent resources and resources owned by another user, so the response never
// discloses existence across users.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Validation errors (400)
	case errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrTitleTooLong),
		errors.Is(err, domain.ErrDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidRecurrenceRule),
		errors.Is(err, domain.ErrRecurrenceRuleRequired),
		errors.Is(err, domain.ErrRecurrenceRuleForbidden),
		errors.Is(err, domain.ErrRemindAtInPast),
		errors.Is(err, domain.ErrInvalidSortField),
		errors.Is(err, domain.ErrInvalidSortOrder),
		errors.Is(err, domain.ErrInvalidStatusFilter):
		BadRequest(w, err.Error())

	// Auth errors (401, 403)
	case errors.Is(err, domain.ErrUnauthorized):
		Unauthorized(w, "invalid or missing token")
	case errors.Is(err, domain.ErrForbidden):
		Forbidden(w, "token does not match requested user")

	// Not found errors (404)
	case errors.Is(err, domain.ErrTaskNotFound):
		NotFound(w, "task")
	case errors.Is(err, domain.ErrReminderNotFound):
		NotFound(w, "reminder")

	// Concurrency errors (409)
	case errors.Is(err, domain.ErrVersionConflict):
		Conflict(w, "task was modified concurrently, retry with fresh state")

	// Transient downstream errors (503)
	case errors.Is(err, domain.ErrBacklogFull):
		Unavailable(w, "event backlog full, retry later")
	case errors.Is(err, domain.ErrUnavailable):
		Unavailable(w, "service temporarily unavailable, retry later")

	default:
		InternalError(w, r, err)
	}
}
