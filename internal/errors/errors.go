package errors

import (
	stderrors "errors"
	"fmt"
)

// APIError is the error shape every handler answers with.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"error"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an APIError whose status follows the code.
func New(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

// NotFound creates a NOT_FOUND error with a verbatim message.
func NotFound(message string) *APIError {
	return New(ErrNotFound, message)
}

// NotFoundResource creates a NOT_FOUND error for a named resource.
func NotFoundResource(resource string) *APIError {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

func Unauthorized(message string) *APIError {
	return New(ErrUnauthorized, message)
}

func Forbidden(message string) *APIError {
	return New(ErrForbidden, message)
}

func Conflict(message string) *APIError {
	return New(ErrConflict, message)
}

// ValidationError creates a VALIDATION_ERROR, optionally bound to a field.
func ValidationError(field, message string) *APIError {
	e := New(ErrValidation, message)
	e.Field = field
	return e
}

func BadRequest(message string) *APIError {
	return New(ErrBadRequest, message)
}

func InternalError(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(ErrInternalError, message)
}

func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return New(ErrRateLimited, message)
}

func ServiceUnavailable(service string) *APIError {
	return New(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// As reports whether err is (or wraps) an *APIError.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
