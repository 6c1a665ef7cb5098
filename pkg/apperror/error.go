package apperror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

// Error represents an application error with HTTP status and error code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches application errors by code, so wrapped copies still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.HTTPStatus == t.HTTPStatus
}

// ToEchoError converts the app error to an echo.HTTPError
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, e.body())
}

func (e *Error) body() map[string]any {
	errBody := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		errBody["details"] = e.Details
	}
	return map[string]any{"error": errBody}
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	// Authentication
	ErrUnauthorized       = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrInvalidToken       = New(http.StatusUnauthorized, "invalid_token", "Could not validate credentials")
	ErrInvalidCredentials = New(http.StatusUnauthorized, "invalid_credentials", "Incorrect username or password")

	// Authorization
	ErrForbidden = New(http.StatusForbidden, "forbidden", "Access denied")

	// Resources
	ErrNotFound      = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrDuplicateUser = New(http.StatusBadRequest, "duplicate_user", "Username or email already registered")

	// Validation
	ErrBadRequest = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrValidation = New(http.StatusBadRequest, "validation_error", "Validation failed")

	// Throttling
	ErrRateLimited = New(http.StatusTooManyRequests, "rate_limited", "Too many requests")

	// Server
	ErrInternal           = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase           = New(http.StatusInternalServerError, "database_error", "Database operation failed")
	ErrSubmissionFailed   = New(http.StatusInternalServerError, "submission_failed", "Benchmark submission could not be stored")
	ErrStorageUnavailable = New(http.StatusServiceUnavailable, "storage_unavailable", "Storage temporarily unavailable, retry later")
)

// ToHTTPError converts an error to a status code and response body
func ToHTTPError(err error) (int, map[string]any) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, appErr.body()
	}
	return http.StatusInternalServerError, ErrInternal.body()
}

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewValidation creates a validation error naming the offending field
func NewValidation(field, message string) *Error {
	return ErrValidation.WithMessage(message).WithDetails(map[string]any{"field": field})
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Code:       "internal_error",
		Message:    message,
		Internal:   err,
	}
}

// NewForbidden creates a forbidden error with a custom message
func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

// FromDB classifies a database error. Application errors pass through,
// timeouts and connection failures become ErrStorageUnavailable and
// everything else ErrDatabase. The driver error is kept as Internal only.
func FromDB(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if IsUnavailable(err) {
		return ErrStorageUnavailable.WithInternal(err)
	}
	return ErrDatabase.WithInternal(err)
}

// IsUnavailable reports whether err means the database could not be reached in time.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return pgconn.Timeout(err)
}
