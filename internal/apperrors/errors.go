package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindConflict          Kind = "CONFLICT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindGateway           Kind = "GATEWAY_ERROR"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any error of the same kind, so errors.Is(err, ErrConflict) works
// for every conflict regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined errors, used as errors.Is targets.
var (
	ErrValidation        = newError(KindValidation, "validation failed", nil)
	ErrNotFound          = newError(KindNotFound, "resource not found", nil)
	ErrUnauthorized      = newError(KindUnauthorized, "unauthorized", nil)
	ErrForbidden         = newError(KindForbidden, "forbidden", nil)
	ErrConflict          = newError(KindConflict, "slot is no longer available", nil)
	ErrInvalidTransition = newError(KindInvalidTransition, "invalid session transition", nil)
	ErrGateway           = newError(KindGateway, "payment provider error", nil)
	ErrInternal          = newError(KindInternal, "internal server error", nil)
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Status: statusFor(kind), Err: err}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation reports a malformed or past-dated request.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...), nil)
}

// NotFound reports a missing entity.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Unauthorized reports a missing or invalid access token.
func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, fmt.Sprintf(format, args...), nil)
}

// Forbidden reports an actor acting on someone else's resource.
func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, fmt.Sprintf(format, args...), nil)
}

// Conflict reports a slot taken at commit time.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, fmt.Sprintf(format, args...), nil)
}

// InvalidTransition reports a refused state machine transition.
func InvalidTransition(format string, args ...any) *Error {
	return newError(KindInvalidTransition, fmt.Sprintf(format, args...), nil)
}

// Gateway wraps a payment or notification provider failure.
func Gateway(err error, message string) *Error {
	return newError(KindGateway, message, err)
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return newError(KindInternal, ErrInternal.Message, err)
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
