package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error for the caller. Internal library and backend
// errors are never passed through raw; they are wrapped into one of these
// kinds with enough context to diagnose.
type ErrorKind string

const (
	// KindValidation marks malformed input: empty file, invalid chunk
	// settings, empty question, duplicate filename. Never retried.
	KindValidation ErrorKind = "VALIDATION"
	// KindNotFound marks operations referencing a filename that is not
	// present in the session.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindBackendUnavailable marks a storage backend or model capability
	// that is unreachable or returned a fault.
	KindBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	// KindInternal marks everything else.
	KindInternal ErrorKind = "INTERNAL"
)

// Error is a structured error with kind, pipeline stage, and cause.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Stage != "" && e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	case e.Stage != "":
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewValidation creates a validation error.
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound creates a not-found error.
func NewNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewBackendUnavailable creates a backend error tagged with the pipeline
// stage that observed the fault.
func NewBackendUnavailable(stage, message string) *Error {
	return &Error{Kind: KindBackendUnavailable, Stage: stage, Message: message}
}

// WithStage sets the pipeline stage (ingest, query, delete, synthesize).
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf extracts the kind from an error chain; KindInternal when the chain
// holds no *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsBackendUnavailable reports whether err is a backend availability error.
func IsBackendUnavailable(err error) bool { return KindOf(err) == KindBackendUnavailable }
