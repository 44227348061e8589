package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("Validation Error")
	ErrAuthentication = errors.New("authentication failed")
	ErrUpstream       = errors.New("upstream rejected request")
	ErrTransport      = errors.New("upstream transport failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error

	// Status and Body are only set for upstream rejections: the remote API's
	// HTTP status and raw response body, relayed to the client unchanged.
	Status int
	Body   []byte

	cause error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause so errors.Is and
// errors.As can match either.
func (e *AppError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-supplied message, for lookups that
// found the record but not the part of it that was needed.
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// AuthenticationFailed marks a bearer token the identity provider would not vouch for.
func AuthenticationFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: message,
		cause:   cause,
	}
}

// Upstream carries a remote API rejection so the handler can relay it verbatim.
func Upstream(status int, body []byte) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("upstream returned status %d", status),
		Status:  status,
		Body:    body,
	}
}

// Transport wraps a network or I/O failure while talking to an upstream.
func Transport(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrTransport,
		Message: fmt.Sprintf("%s: %v", op, cause),
		cause:   cause,
	}
}
