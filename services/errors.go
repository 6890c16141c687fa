package services

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to the API layer. Every failure leaving the
// combat core carries exactly one of these; handlers map them to HTTP
// statuses without ever exposing internals.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeForbidden       = "FORBIDDEN"
	CodeInvalidState    = "INVALID_STATE"
	CodeRateLimited     = "RATE_LIMITED"
	CodeConflict        = "CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeUnavailable     = "UNAVAILABLE"
)

// CombatError pairs a stable code with a human-readable message. Err, when
// set, carries the underlying cause for logs only.
type CombatError struct {
	Code    string
	Message string
	Err     error
}

func (e *CombatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CombatError) Unwrap() error {
	return e.Err
}

// NewCombatError builds a CombatError without an underlying cause.
func NewCombatError(code, message string) *CombatError {
	return &CombatError{Code: code, Message: message}
}

// WrapCombatError builds a CombatError around an underlying cause.
func WrapCombatError(code, message string, err error) *CombatError {
	return &CombatError{Code: code, Message: message, Err: err}
}

// AsCombatError unwraps err into a *CombatError, or nil if it isn't one.
func AsCombatError(err error) *CombatError {
	var ce *CombatError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// ErrorCode returns the stable code carried by err, or "" for untyped errors.
func ErrorCode(err error) string {
	if ce := AsCombatError(err); ce != nil {
		return ce.Code
	}
	return ""
}
