package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how callers should handle a failure.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: remote storage timeout, bus temporarily unreachable.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid input, task not found.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for task service failures.
const (
	// Permanent errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Malformed or invalid request
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // Referenced task does not exist
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Operation was canceled

	// Transient errors
	ErrCodeTimeout        ErrorCode = "TIMEOUT"         // Remote call timed out
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"     // Peer or surface unavailable
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE" // Storage layer could not complete

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeInvalidInput, ErrCodeNotFound, ErrCodeCanceled:
		return CategoryPermanent
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeStorageFailure:
		return CategoryTransient
	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeInvalidInput:   "invalid input provided",
	ErrCodeNotFound:       "task not found",
	ErrCodeCanceled:       "operation canceled",
	ErrCodeTimeout:        "operation timed out",
	ErrCodeUnavailable:    "service unavailable",
	ErrCodeStorageFailure: "storage operation failed",
	ErrCodeInternal:       "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
