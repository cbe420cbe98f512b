package errors

import (
	"errors"
	"fmt"
)

// DirpollError is the structured error type for dirpoll.
// It provides rich context for error handling, logging, and user presentation.
type DirpollError struct {
	// Code is the unique error code (e.g., "ERR_201_LISTING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Transient, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DirpollError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DirpollError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with DirpollError sentinels.
func (e *DirpollError) Is(target error) bool {
	if t, ok := target.(*DirpollError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *DirpollError) WithDetail(key, value string) *DirpollError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *DirpollError) WithSuggestion(suggestion string) *DirpollError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DirpollError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DirpollError {
	return &DirpollError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DirpollError from an existing error.
// The error's message becomes the DirpollError message.
func Wrap(code string, err error) *DirpollError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DirpollError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a listing I/O error.
func IOError(message string, cause error) *DirpollError {
	return New(ErrCodeListingFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DirpollError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DirpollError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the outermost DirpollError in err's chain.
func as(err error) (*DirpollError, bool) {
	var de *DirpollError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if a DirpollError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	if de, ok := as(err); ok {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if de, ok := as(err); ok {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DirpollError.
// Returns empty string if the chain holds no DirpollError.
func GetCode(err error) string {
	if de, ok := as(err); ok {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DirpollError.
// Returns empty string if the chain holds no DirpollError.
func GetCategory(err error) Category {
	if de, ok := as(err); ok {
		return de.Category
	}
	return ""
}
