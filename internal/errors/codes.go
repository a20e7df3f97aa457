package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrConflict        ErrorCode = "CONFLICT"
	ErrValidation      ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest      ErrorCode = "BAD_REQUEST"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrAnomalous       ErrorCode = "ANOMALOUS_BEHAVIOR"
	ErrServiceUnavail  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrInvalidAPIKey   ErrorCode = "INVALID_API_KEY"
	ErrTwoFactorNeeded ErrorCode = "TWO_FACTOR_REQUIRED"
)

// StatusCodeMap maps ErrorCode to HTTP status code. Validation failures are
// plain 400s; clients only rely on the message string.
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:        http.StatusNotFound,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrForbidden:       http.StatusForbidden,
	ErrConflict:        http.StatusConflict,
	ErrValidation:      http.StatusBadRequest,
	ErrBadRequest:      http.StatusBadRequest,
	ErrInternalError:   http.StatusInternalServerError,
	ErrRateLimited:     http.StatusTooManyRequests,
	ErrAnomalous:       http.StatusTooManyRequests,
	ErrServiceUnavail:  http.StatusServiceUnavailable,
	ErrInvalidAPIKey:   http.StatusUnauthorized,
	ErrTwoFactorNeeded: http.StatusUnauthorized,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
