// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/session"
)

// ShowErrorDetails controls whether unexpected errors expose their text.
var ShowErrorDetails = false

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code, message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    code,
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error carrying a user-facing message
func NewUnprocessableError(code, message string) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: message,
	}
}

// NewNotImplementedError creates a 501 Not Implemented error
func NewNotImplementedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusNotImplemented,
		Code:    "NOT_IMPLEMENTED",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// FromDomainError maps flow and session errors to API errors. message, if
// not empty, replaces the default message (used for localized text).
func FromDomainError(err error, id, message string) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, session.ErrSessionNotFound):
		apiErr = NewNotFoundError("session", id)
	case errors.Is(err, session.ErrTooManySessions):
		apiErr = NewServiceUnavailableError("too many active sessions")
	case errors.Is(err, flow.ErrNoFilesSelected):
		apiErr = NewUnprocessableError("NO_FILES_SELECTED", "no files selected")
	case errors.Is(err, flow.ErrAnalysisPending):
		apiErr = NewConflictError("ANALYSIS_PENDING", "analysis already pending")
	case errors.Is(err, flow.ErrAlreadyFinished):
		apiErr = NewConflictError("ANALYSIS_FINISHED", "analysis already finished")
	case errors.Is(err, flow.ErrNotComplete):
		apiErr = NewConflictError("ANALYSIS_NOT_COMPLETE", "analysis not complete")
	case errors.Is(err, flow.ErrNotImplemented):
		apiErr = NewNotImplementedError("not implemented")
	case errors.Is(err, flow.ErrStartOverDisabled):
		apiErr = &APIError{Status: http.StatusForbidden, Code: "START_OVER_DISABLED", Message: "start over is disabled"}
	case errors.Is(err, flow.ErrUnknownLocale):
		apiErr = &APIError{Status: http.StatusBadRequest, Code: "UNKNOWN_LOCALE", Message: err.Error()}
	case errors.Is(err, flow.ErrClosed):
		apiErr = &APIError{Status: http.StatusGone, Code: "SESSION_CLOSED", Message: fmt.Sprintf("session closed: %s", id)}
	default:
		return NewInternalError("unexpected error", err)
	}
	if message != "" {
		apiErr.Message = message
	}
	return apiErr
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	if apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusNotImplemented {
		logger.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"code":   apiErr.Code,
		}).WithError(err).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
