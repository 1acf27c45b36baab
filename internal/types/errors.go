package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced code identifying a class of failure.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Graph store error codes
const (
	GRAPH_CONNECTION_FAILED ErrorCode = "GRAPH_CONNECTION_FAILED"
	GRAPH_CONNECTION_CLOSED ErrorCode = "GRAPH_CONNECTION_CLOSED"
	GRAPH_QUERY_FAILED      ErrorCode = "GRAPH_QUERY_FAILED"
	GRAPH_WRITE_FAILED      ErrorCode = "GRAPH_WRITE_FAILED"
	GRAPH_INVALID_CONFIG    ErrorCode = "GRAPH_INVALID_CONFIG"
)

// Ingestion error codes
const (
	INGEST_MALFORMED_FINDING ErrorCode = "INGEST_MALFORMED_FINDING"
	INGEST_DECODE_FAILED     ErrorCode = "INGEST_DECODE_FAILED"
	ARTIFACT_NOT_FOUND       ErrorCode = "ARTIFACT_NOT_FOUND"
)

// Upload and authentication error codes
const (
	UPLOAD_NOT_CONFIGURED ErrorCode = "UPLOAD_NOT_CONFIGURED"
	UPLOAD_FAILED         ErrorCode = "UPLOAD_FAILED"
	AUTH_FAILED           ErrorCode = "AUTH_FAILED"
)

// Scanner error codes
const (
	SCAN_START_FAILED ErrorCode = "SCAN_START_FAILED"
	SCAN_FAILED       ErrorCode = "SCAN_FAILED"
)

// Error is a structured error carrying a code, a human-readable message,
// a retryability hint, and an optional cause.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error returns "[CODE] message" or "[CODE] message: cause".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so sentinel comparisons work across wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError creates a non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a non-retryable Error wrapping a cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewRetryableError creates an Error that callers may safely retry,
// such as a store that is still warming up.
func NewRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: true, Cause: cause}
}

// IsRetryable reports whether err (or anything it wraps) is a retryable Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
