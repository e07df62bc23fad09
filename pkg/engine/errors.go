package engine

import (
	"errors"
	"fmt"
)

// ErrorClass partitions boundary failures. Each class maps to a distinct
// message prefix so callers on the far side can tell them apart.
type ErrorClass string

const (
	// ErrorClassUnparseable means the text cannot be interpreted as a phone
	// number under the given region.
	ErrorClassUnparseable ErrorClass = "unparseable"

	// ErrorClassUnknownRegion means a region code or calling code has no
	// metadata in the engine.
	ErrorClassUnknownRegion ErrorClass = "unknown_region"

	// ErrorClassEncoding means an input was missing or not valid UTF-8.
	ErrorClassEncoding ErrorClass = "encoding"

	// ErrorClassInvalidArgument means a scalar argument was outside its domain,
	// e.g. an unknown format ordinal.
	ErrorClassInvalidArgument ErrorClass = "invalid_argument"

	// ErrorClassInternal means the engine faulted. The message is generic.
	ErrorClassInternal ErrorClass = "internal"
)

// Error is a classified boundary error.
// nolint:revive // Error is the package's only error type
type Error struct {
	// Class is the failure classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the boundary operation that failed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("[%s] %s (operation=%s)", e.Class, e.Message, e.Operation)
	}
	// internal causes stay out of caller-visible text
	if e.Err != nil && e.Class != ErrorClassInternal {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewUnparseableError creates an error for text the engine cannot parse.
func NewUnparseableError(message string, err error) *Error {
	return &Error{Class: ErrorClassUnparseable, Message: message, Err: err, Code: ErrCodeParseFailed}
}

// NewUnknownRegionError creates an error for a region or calling code lookup miss.
func NewUnknownRegionError(message string, err error) *Error {
	return &Error{Class: ErrorClassUnknownRegion, Message: message, Err: err, Code: ErrCodeRegionNotFound}
}

// NewEncodingError creates an error for a missing or malformed text input.
func NewEncodingError(message string, err error) *Error {
	return &Error{Class: ErrorClassEncoding, Message: message, Err: err, Code: ErrCodeInvalidUTF8}
}

// NewInvalidArgumentError creates an error for an out-of-domain scalar argument.
func NewInvalidArgumentError(message string, err error) *Error {
	return &Error{Class: ErrorClassInvalidArgument, Message: message, Err: err}
}

// NewInternalError creates an error for an engine fault. The underlying error
// is kept for logging but never rendered into the message.
func NewInternalError(message string, err error) *Error {
	return &Error{Class: ErrorClassInternal, Message: message, Err: err, Code: ErrCodeInternal}
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode sets the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of err, or ErrorClassInternal when err does not
// carry one.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassInternal
}

// IsUnparseable returns true if the error is classified as unparseable.
func IsUnparseable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ErrorClassUnparseable
}

// IsUnknownRegion returns true if the error is classified as an unknown region.
func IsUnknownRegion(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ErrorClassUnknownRegion
}

// IsEncoding returns true if the error is classified as an encoding fault.
func IsEncoding(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ErrorClassEncoding
}

// IsInternal returns true if the error is classified as internal.
func IsInternal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ErrorClassInternal
}

// Common error codes.
const (
	ErrCodeParseFailed         = "PARSE_FAILED"
	ErrCodeRegionNotFound      = "REGION_NOT_FOUND"
	ErrCodeCallingCodeNotFound = "CALLING_CODE_NOT_FOUND"
	ErrCodeInvalidUTF8         = "INVALID_UTF8"
	ErrCodeNullInput           = "NULL_INPUT"
	ErrCodeInvalidFormat       = "INVALID_FORMAT"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeEnginePanic         = "ENGINE_PANIC"
	ErrCodeInvalidRecord       = "INVALID_RECORD"
	ErrCodeInputTooLarge       = "INPUT_TOO_LARGE"
	ErrCodeOutOfBounds         = "OUT_OF_BOUNDS"
)
