package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a ServiceError, its code and category are preserved.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, preserve its properties
	var svcErr *Error
	if errors.As(err, &svcErr) {
		wrapped := &Error{
			code:      svcErr.code,
			category:  svcErr.category,
			message:   message,
			cause:     err,
			retryable: svcErr.retryable,
			taskID:    svcErr.taskID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsServiceError attempts to extract a ServiceError from an error chain.
// Returns nil if no ServiceError is found.
func AsServiceError(err error) ServiceError {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Retryable()
	}
	// Default to not retryable for non-ServiceErrors
	return false
}

// IsNotFound checks if the error carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

// IsInvalidInput checks if the error carries the INVALID_INPUT code.
func IsInvalidInput(err error) bool {
	return Is(err, ErrCodeInvalidInput)
}

// IsStorageFailure checks if the error carries the STORAGE_FAILURE code.
func IsStorageFailure(err error) bool {
	return Is(err, ErrCodeStorageFailure)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a ServiceError.
func Code(err error) ErrorCode {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
// Returns empty string if err is not a ServiceError.
func Category(err error) ErrorCategory {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.category
	}
	return ""
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error.
// Uses errors.Join from the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
