package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for the analytics pipeline and its API surface
type ErrorType string

const (
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypeParse        ErrorType = "parse"
	ErrorTypeEmptyInput   ErrorType = "empty_input"
	ErrorTypeNoData       ErrorType = "no_data"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewSchemaError reports input that lacks mandatory columns. It is fatal and
// raised before any analytics run.
func NewSchemaError(missing []string) *AppError {
	return &AppError{
		Type:       ErrorTypeSchema,
		Code:       "MISSING_COLUMNS",
		Message:    fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		Details:    map[string]interface{}{"missing": missing},
		StatusCode: 422,
	}
}

// NewParseError reports a single unparseable field. Callers record it and
// treat the field as absent instead of aborting.
func NewParseError(field string, row int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeParse,
		Code:       "UNPARSEABLE_FIELD",
		Message:    fmt.Sprintf("row %d: cannot parse %s", row, field),
		Details:    map[string]interface{}{"field": field, "row": row},
		Cause:      cause,
		StatusCode: 400,
	}
}

func NewEmptyInputError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeEmptyInput,
		Code:       "EMPTY_INPUT",
		Message:    message,
		StatusCode: 422,
	}
}

// NewNoDataError signals that a computation requiring at least one element
// (e.g. the slowest case) had nothing to choose from.
func NewNoDataError(what string) *AppError {
	return &AppError{
		Type:       ErrorTypeNoData,
		Code:       "NO_DATA",
		Message:    fmt.Sprintf("no data available for %s", what),
		StatusCode: 404,
	}
}

func NewConfigError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConfig,
		Code:       code,
		Message:    message,
		StatusCode: 500,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: 400,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: 401,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    message,
		Retryable:  true,
		StatusCode: 429,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
