// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It keeps status codes, headers and error bodies consistent across handlers.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/store"
)

// SessionExpiredMessage is what clients show when the calendar token died.
const SessionExpiredMessage = "session expired, sign in again"

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode  int
	body        any
	raw         []byte
	contentType string
	headers     map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode:  http.StatusOK,
		contentType: "application/json",
		headers:     make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Raw sets a pre-rendered body with its content type.
func (b *JSONResponseBuilder) Raw(contentType string, body []byte) *JSONResponseBuilder {
	b.contentType = contentType
	b.raw = body
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.raw
	if b.body != nil {
		encoded, err := json.Marshal(b.body)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
			return
		}
		body = encoded
	}

	if b.statusCode != http.StatusNoContent {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 && b.statusCode != http.StatusNoContent {
		_, _ = w.Write(body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// ForbiddenError creates a 403 Forbidden error response.
func ForbiddenError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, message)
}

// errorFor maps domain errors onto responses. Unknown errors become a 500
// whose details only reach the log.
func errorFor(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrSessionExpired):
		return UnauthorizedError(SessionExpiredMessage)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, core.ErrNotRecurring):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrTitleTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidDeadline):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, store.ErrGuestDisabled):
		return ForbiddenError(err.Error())
	case errors.Is(err, store.ErrInvalidOwner):
		return BadRequestError(err.Error())
	case errors.Is(err, store.ErrClosed):
		return ErrorResponse(http.StatusServiceUnavailable, "try again")
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs err at a level matching its response and writes it.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(op).WithError(err)
	switch {
	case resp.statusCode >= 500:
		logger.ErrorContext(r.Context(), "Request failed", fields.WithErrorType(log.ErrorTypeInternal).ToSlice()...)
	case resp.statusCode == http.StatusNotFound:
		logger.DebugContext(r.Context(), "Request target missing", fields.WithErrorType(log.ErrorTypeNotFound).ToSlice()...)
	default:
		logger.InfoContext(r.Context(), "Request rejected", fields.WithErrorType(log.ErrorTypeValidation).ToSlice()...)
	}
	resp.Write(w)
}
