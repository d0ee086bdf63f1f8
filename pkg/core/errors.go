// Package core provides shared error types and HTTP helpers for the railmap client.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode defines standard error codes
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrRejected           ErrorCode = "REJECTED"
	ErrNotFound           ErrorCode = "NOT_FOUND"

	// Data errors
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Kind classifies an error by how the caller should recover from it
type Kind string

const (
	// KindNetworkFailure means the request could not be completed
	KindNetworkFailure Kind = "network_failure"
	// KindServerRejection means the server answered with a non-2xx status
	KindServerRejection Kind = "server_rejection"
	// KindValidationFailure means user input was rejected before any request
	KindValidationFailure Kind = "validation_failure"
	// KindParseFailure means a 2xx response body could not be decoded
	KindParseFailure Kind = "parse_failure"
	// KindInternal covers programming and state errors
	KindInternal Kind = "internal"
)

// Error is the structured error returned by railmap components
type Error struct {
	Code     string `json:"code"`
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Status   int    `json:"status,omitempty"`
	Guidance string `json:"guidance,omitempty"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new Error with the given code, kind and message
func NewError(code ErrorCode, kind Kind, message string) *Error {
	return &Error{
		Code:    string(code),
		Kind:    kind,
		Message: message,
	}
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithCause records the error that produced e
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// NetworkError wraps a transport failure
func NetworkError(err error) *Error {
	return NewError(ErrNetworkError, KindNetworkFailure, err.Error()).
		WithCause(err).
		WithGuidance("The server could not be reached. Please try again later")
}

// ServiceError creates an error for a non-2xx response. The message is kept
// verbatim so it can be shown to the user.
func ServiceError(statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The server is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try a smaller map area."
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = ErrRejected
	case http.StatusNotFound:
		code = ErrNotFound
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The server is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
	}

	e := NewError(code, KindServerRejection, message).WithGuidance(guidance)
	e.Status = statusCode
	return e
}

// NewValidationError creates an error for input rejected before any request
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, KindValidationFailure, message)
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the text to show a user for err. Server rejections
// surface the server's own message verbatim.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
