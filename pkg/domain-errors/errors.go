// Package dErrors provides the coded error taxonomy for the custody engine.
//
// Services return these so callers can distinguish "fix your input"
// (invalid_input), business-rule conflicts (insufficient_stock,
// already_recalled, illegal_transition, ...), referential failures
// (*_not_found), and transient conflicts (conflict) that are safe to retry
// a bounded number of times. Stores return pkg/platform/sentinel errors;
// services translate them into these.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	// CodeInvalidInput marks malformed or out-of-range input. Caller's
	// fault; never retried automatically.
	CodeInvalidInput Code = "invalid_input"

	// Business-rule conflicts. Surfaced to the caller for a decision,
	// not retried.
	CodeInsufficientStock Code = "insufficient_stock"
	CodeAlreadyRecalled   Code = "already_recalled"
	CodeAlreadyTerminal   Code = "already_terminal"
	CodeIllegalTransition Code = "illegal_transition"
	CodeBatchRecalled     Code = "batch_recalled"
	CodeExceedsTarget     Code = "exceeds_target"

	// Referential failures.
	CodePartyNotFound Code = "party_not_found"
	CodeUnitNotFound  Code = "unit_not_found"
	CodeBatchNotFound Code = "batch_not_found"
	CodeNotFound      Code = "not_found"

	// CodeConflict marks a transient concurrency conflict (lock wait
	// timeout, optimistic version miss). Safe to retry with backoff.
	CodeConflict Code = "conflict"

	// CodeExpired marks an access code past its validity. Terminal.
	CodeExpired Code = "expired"

	CodeTimeout  Code = "timeout"
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error with a static message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
		domainErr = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when
// err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the failed operation.
// Only transient concurrency conflicts qualify.
func Retryable(err error) bool {
	return HasCode(err, CodeConflict)
}
