package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseError indicates malformed raw documentation input
	ParseError ErrorCode = "PARSE_ERROR"
	// StoreError indicates an unreadable or incompatible serialized store
	StoreError ErrorCode = "STORE_ERROR"
	// ConfigError indicates a malformed or schema-invalid configuration
	ConfigError ErrorCode = "CONFIG_ERROR"
	// ResolutionMiss indicates a query had no answer. It is not a failure.
	ResolutionMiss ErrorCode = "RESOLUTION_MISS"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// AsmError represents an error with a stable code, message and optional details
type AsmError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// NewAsmError creates a new AsmError
func NewAsmError(code ErrorCode, message string, cause error) *AsmError {
	return &AsmError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *AsmError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AsmError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AsmError) WithDetails(details interface{}) *AsmError {
	e.Details = details
	return e
}

// ParseDetails identifies where a raw source failed to parse.
type ParseDetails struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

// StoreDetails identifies the store that could not be used.
type StoreDetails struct {
	Key string `json:"key"`
}

// ConfigDetails identifies the offending configuration field.
type ConfigDetails struct {
	Field string `json:"field"`
}

// NewParseError reports a malformed raw documentation file. line is 1-based;
// zero means the position is unknown.
func NewParseError(file string, line int, message string, cause error) *AsmError {
	msg := file
	if line > 0 {
		msg = fmt.Sprintf("%s:%d", file, line)
	}
	return NewAsmError(ParseError, msg+": "+message, cause).
		WithDetails(ParseDetails{File: file, Line: line})
}

// NewStoreError reports a store that could not be read or decoded.
func NewStoreError(key string, message string, cause error) *AsmError {
	return NewAsmError(StoreError, "store "+key+": "+message, cause).
		WithDetails(StoreDetails{Key: key})
}

// NewConfigError reports an invalid configuration field.
func NewConfigError(field string, message string, cause error) *AsmError {
	return NewAsmError(ConfigError, "config field '"+field+"': "+message, cause).
		WithDetails(ConfigDetails{Field: field})
}

// ErrResolutionMiss is returned by query handlers when nothing matches.
var ErrResolutionMiss = NewAsmError(ResolutionMiss, "no answer", nil)

// CodeOf returns the code of the first AsmError in err's chain, or
// InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var ae *AsmError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsMiss reports whether err is a resolution miss.
func IsMiss(err error) bool {
	return IsCode(err, ResolutionMiss)
}
