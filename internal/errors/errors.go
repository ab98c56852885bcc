// Package errors provides structured error types for cifstore.
// Every error carries a category, a code, a message and a retryable flag so
// that the engine, the loaders and the CLI can react to failures uniformly.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategoryValue     ErrorCategory = "VALUE"
	ErrCategorySchema    ErrorCategory = "SCHEMA"
	ErrCategoryStructure ErrorCategory = "STRUCTURE"
	ErrCategoryLink      ErrorCategory = "LINK"
	ErrCategoryKey       ErrorCategory = "KEY"
	ErrCategoryStorage   ErrorCategory = "STORAGE"
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Value codes
	CodeMalformedValue = "MALFORMED_VALUE"
	CodeValueTooLong   = "VALUE_TOO_LONG"
	CodeUnwritable     = "UNWRITABLE_VALUE"

	// Schema codes
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnknownTag       = "UNKNOWN_TAG"
	CodeMissingMandatory = "MISSING_MANDATORY"
	CodeInvalidPattern   = "INVALID_PATTERN"

	// Structure codes
	CodeOutOfOrder           = "OUT_OF_ORDER"
	CodeInconsistentCategory = "INCONSISTENT_CATEGORY"
	CodeInconsistentValues   = "INCONSISTENT_VALUES"
	CodeNotFound             = "NOT_FOUND"
	CodeParseError           = "PARSE_ERROR"
	CodeInvalidRow           = "INVALID_ROW"

	// Link codes
	CodeLinkArity           = "LINK_ARITY"
	CodeLinkUnknownCategory = "LINK_UNKNOWN_CATEGORY"
	CodeLinkUnknownTag      = "LINK_UNKNOWN_TAG"
	CodeMissingParent       = "MISSING_PARENT"

	// Key codes
	CodeDuplicateKey = "DUPLICATE_KEY"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeListFailed     = "LIST_FAILED"
	CodeCacheFailed    = "CACHE_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeCodecFailed    = "CODEC_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// StoreError is the structured error type used throughout the system.
type StoreError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StoreError.
func New(category ErrorCategory, code, message string) *StoreError {
	return &StoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new StoreError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *StoreError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new StoreError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StoreError {
	return &StoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *StoreError) WithDetails(details map[string]interface{}) *StoreError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether an error must abort the operation that produced it.
// Malformed values are the only errors that degrade to a default instead.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) {
		return !(se.Category == ErrCategoryValue && se.Code == CodeMalformedValue)
	}
	return true
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StoreError.
func GetCategory(err error) ErrorCategory {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StoreError.
func GetCode(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValueError(code, message string) *StoreError {
	return New(ErrCategoryValue, code, message)
}

func NewSchemaError(code, message string) *StoreError {
	return New(ErrCategorySchema, code, message)
}

func NewStructureError(code, message string) *StoreError {
	return New(ErrCategoryStructure, code, message)
}

func NewLinkError(code, message string) *StoreError {
	return New(ErrCategoryLink, code, message)
}

func NewKeyError(message string) *StoreError {
	return New(ErrCategoryKey, CodeDuplicateKey, message)
}

func NewStorageError(code, message string, cause error) *StoreError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(message string, cause error) *StoreError {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, message, cause)
}

func NewInternalError(message string, cause error) *StoreError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
