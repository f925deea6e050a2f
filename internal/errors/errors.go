// Package errors defines the structured error taxonomy for the reminder
// pipeline. Every failure that can cross a component boundary carries a
// Code so callers can route it (clarify, retry, escalate) without string
// matching.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of pipeline failure.
type Code string

const (
	// CodeUnresolvedTimezone indicates a timezone reference that matched no
	// known abbreviation, city, or IANA name. Non-fatal: callers fall back
	// to the assigner's configured zone.
	CodeUnresolvedTimezone Code = "UNRESOLVED_TIMEZONE"
	// CodeSchemaViolation indicates parser output that failed structural
	// validation. Routed to clarification, never surfaced raw.
	CodeSchemaViolation Code = "SCHEMA_VIOLATION"
	// CodeLowConfidence indicates a structurally valid draft below the
	// confidence threshold. Routed to clarification.
	CodeLowConfidence Code = "LOW_CONFIDENCE"
	// CodeClarificationExhausted indicates the bounded clarification loop
	// ran out of rounds. Terminal; surfaced with the full correction history.
	CodeClarificationExhausted Code = "CLARIFICATION_EXHAUSTED"
	// CodeDeliveryFailure indicates the delivery collaborator rejected or
	// timed out on a send after backoff retries.
	CodeDeliveryFailure Code = "DELIVERY_FAILURE"
	// CodePersistenceFailure indicates the persistence collaborator failed.
	// Scheduling proceeds from in-memory state regardless.
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	// CodeParserUnavailable indicates the external structured parser could
	// not be reached or returned garbage.
	CodeParserUnavailable Code = "PARSER_UNAVAILABLE"
	// CodeInvalidArgument indicates invalid input parameters.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Error is a code-bearing error with optional cause and context.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Wrapf wraps an existing error with a code and formatted message.
func Wrapf(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsCode reports whether err or any error it wraps carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from any error, returning defaultCode for
// errors that did not originate in this package.
func CodeOf(err error, defaultCode Code) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}
