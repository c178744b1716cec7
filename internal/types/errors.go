package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services use these instead of
// hardcoded strings; the prefix decides the HTTP status.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidNode  ErrorCode = "validation_invalid_node_id"
	ErrCodeValidationInvalidHours ErrorCode = "validation_invalid_hours"
	ErrCodeValidationReading      ErrorCode = "validation_invalid_reading"
	ErrCodeValidationPushToken    ErrorCode = "validation_invalid_push_token"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"

	// Insufficient history for a forecast or fit (400)
	ErrCodeInsufficientData ErrorCode = "insufficient_data"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Forbidden (403)
	ErrCodeForbiddenIPBlocked ErrorCode = "forbidden_ip_blocked"

	// Rate limited (429)
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundReading   ErrorCode = "not_found_reading"
	ErrCodeNotFoundPushToken ErrorCode = "not_found_push_token"

	// Delivery outcome reported by the push transport. Never surfaced over HTTP.
	ErrCodePushUnregistered ErrorCode = "push_token_unregistered"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB              ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected      ErrorCode = "internal_unexpected_error"
	ErrCodeInternalConfigInvariant ErrorCode = "internal_config_invariant"
	ErrCodeUpstreamStorage         ErrorCode = "upstream_storage_unavailable"
	ErrCodeUpstreamPush            ErrorCode = "upstream_push_unavailable"
	ErrCodeUpstreamUnavailable     ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited     ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), c == ErrCodeInsufficientData:
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "forbidden_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "rate_limit_"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain and handler errors
// are expressed as AppError so that formatting, HTTP status mapping, and error
// chains behave the same everywhere.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
