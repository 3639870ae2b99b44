// Package dErrors provides code-carrying domain errors. Services return these
// so transport can translate them to HTTP statuses without string matching,
// and callers can branch on codes with HasCode.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The taxonomy is deliberately small: every
// failure a caller can act on has exactly one code.
type Code string

const (
	// CodeUnauthorized means no verified caller identity. Never retried.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means the caller is known but not permitted, including
	// tenant ownership mismatches.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the referenced entity does not exist in the caller's
	// scope. Tenant resolution failures surface as this code.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput means a malformed field (bad UUID, unknown enum).
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation means structurally valid input that violates a domain
	// rule, shown inline near the offending field.
	CodeValidation Code = "validation"
	// CodeNoGuardrails means a composition produced zero enforcement links.
	// A policy with no enforcement is never created.
	CodeNoGuardrails Code = "no_guardrails_selected"
	// CodeConflict means a uniqueness or state conflict.
	CodeConflict Code = "conflict"
	// CodeSlugExhausted means the slug collision retry budget ran out;
	// the user should choose a different name.
	CodeSlugExhausted Code = "slug_exhausted"
	// CodeCompilation means the external policy compiler rejected or errored.
	// The compiler's message is preserved verbatim for display.
	CodeCompilation Code = "compilation_failed"
	// CodeInternal means an infrastructure failure. Details are logged
	// server-side, never returned to the caller.
	CodeInternal Code = "internal"
)

// Error is a domain error with a stable code and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message of err, or an empty string when
// err is not a domain error.
func MessageOf(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return ""
}
