package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that a referenced entity does not exist. The REST
// layer maps it to a null-data envelope on GET and a false result on
// HEAD/DELETE.
var ErrNotFound = errors.New("not found")

// ValidationErrorCode is the fixed vocabulary of per-field validation
// failures.
type ValidationErrorCode string

const (
	CodeInvalidJSON          ValidationErrorCode = "INVALID_JSON"
	CodeMissingRequiredField ValidationErrorCode = "MISSING_REQUIRED_FIELD"
	CodeUnexpectedField      ValidationErrorCode = "UNEXPECTED_FIELD"
	CodeNullNotAllowed       ValidationErrorCode = "NULL_NOT_ALLOWED"
	CodeTypeMismatch         ValidationErrorCode = "TYPE_MISMATCH"
	CodePatternMismatch      ValidationErrorCode = "PATTERN_MISMATCH"
	CodeValueTooSmall        ValidationErrorCode = "VALUE_TOO_SMALL"
	CodeValueTooLarge        ValidationErrorCode = "VALUE_TOO_LARGE"
	CodeStringTooShort       ValidationErrorCode = "STRING_TOO_SHORT"
	CodeStringTooLong        ValidationErrorCode = "STRING_TOO_LONG"
	CodeArrayTooShort        ValidationErrorCode = "ARRAY_TOO_SHORT"
	CodeArrayTooLong         ValidationErrorCode = "ARRAY_TOO_LONG"
	CodeValueNotAllowed      ValidationErrorCode = "VALUE_NOT_ALLOWED"
	CodeInvalidArrayElement  ValidationErrorCode = "INVALID_ARRAY_ELEMENT"
)

// ValidationFailure is one rejected check against one field path.
type ValidationFailure struct {
	ErrorCode ValidationErrorCode `json:"errorCode"`
	FieldPath string              `json:"fieldPath,omitempty"`
	Message   string              `json:"message"`
}

// ValidationError carries every failure found while validating a candidate
// document. The validator accumulates all failures before raising.
type ValidationError struct {
	Errors []ValidationFailure `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors {
		if f.FieldPath != "" {
			parts = append(parts, fmt.Sprintf("%s [%s]: %s", f.ErrorCode, f.FieldPath, f.Message))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", f.ErrorCode, f.Message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-failure ValidationError.
func NewValidationError(code ValidationErrorCode, fieldPath, message string) *ValidationError {
	return &ValidationError{Errors: []ValidationFailure{{ErrorCode: code, FieldPath: fieldPath, Message: message}}}
}

// BackendError reports a SQL or DDL failure from the adapter. It is fatal
// for the operation that raised it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error during %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// UnsupportedOperationError reports input outside the supported surface,
// e.g. SQL outside the narrow searchable dialect.
type UnsupportedOperationError struct {
	Code    string
	Message string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrUnsupportedSQL builds the rejection raised for expressions outside the
// SQL-like search grammar.
func ErrUnsupportedSQL(message string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Code: "UNSUPPORTED_SQL", Message: message}
}
