// Package errors provides structured error handling for dirpoll.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (listing, stat, state files)
//   - 3XX: Transient errors that resolve on a later poll cycle
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates listing, stat and state file errors.
	CategoryIO Category = "IO"
	// CategoryTransient indicates errors expected to clear on a later cycle.
	CategoryTransient Category = "TRANSIENT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigBackend  = "ERR_103_CONFIG_BACKEND"

	// IO errors (200-299)
	ErrCodeListingFailed  = "ERR_201_LISTING_FAILED"
	ErrCodeModTimeUnknown = "ERR_202_MODTIME_UNKNOWN"
	ErrCodeStateCorrupt   = "ERR_203_STATE_CORRUPT"
	ErrCodeStateLocked    = "ERR_204_STATE_LOCKED"
	ErrCodeStateWrite     = "ERR_205_STATE_WRITE"

	// Transient errors (300-399)
	ErrCodeRetryLater = "ERR_301_RETRY_LATER"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeNoDirectories   = "ERR_402_NO_DIRECTORIES"
	ErrCodeInvalidInterval = "ERR_403_INVALID_INTERVAL"
	ErrCodeInvalidPath     = "ERR_404_INVALID_PATH"
	ErrCodeInvalidPattern  = "ERR_405_INVALID_PATTERN"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeAdapterCrash   = "ERR_502_ADAPTER_CRASH"
	ErrCodeListenerFailed = "ERR_503_LISTENER_FAILED"
	ErrCodePollerState    = "ERR_504_POLLER_STATE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryTransient
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeAdapterCrash, ErrCodeStateCorrupt:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRetryLater, ErrCodeStateLocked, ErrCodeListingFailed, ErrCodeModTimeUnknown:
		return true
	default:
		return false
	}
}
