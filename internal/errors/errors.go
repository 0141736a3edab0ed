// Package errors provides custom error types for the Tribune audit API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code, so errors derived with Wrap or WithMessage
// still satisfy errors.Is against their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized  = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden     = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrInvalidOpsKey = &AppError{Code: "INVALID_OPS_KEY", Message: "Invalid or missing operations key", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Audit read-path errors.
var (
	ErrInvalidFilter    = &AppError{Code: "INVALID_FILTER", Message: "Invalid audit filter", StatusCode: http.StatusBadRequest}
	ErrOrgScopeRequired = &AppError{Code: "ORG_SCOPE_REQUIRED", Message: "An organization scope is required", StatusCode: http.StatusBadRequest}
	ErrInvalidFormat    = &AppError{Code: "INVALID_FORMAT", Message: "Unsupported export format", StatusCode: http.StatusBadRequest}
)

// Retention purge errors. Surfaced only to the scheduling and operations
// channel, never to end users of the read path.
var (
	ErrPurgeFailed = &AppError{Code: "PURGE_FAILED", Message: "Retention purge did not complete", StatusCode: http.StatusInternalServerError}
)
