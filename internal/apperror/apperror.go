// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these domain errors; the HTTP layer maps them to
// status codes with errors.Is, never the other way around. Every error
// aborts the enclosing unit of work: the transaction wrapper rolls back
// all mutations (and events) performed beneath the failing call.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized       = errors.New("not initialized")
	ErrAlreadyInitialized   = errors.New("already initialized")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidScore         = errors.New("invalid score")
	ErrNotFound             = errors.New("not found")
	ErrAddressCollision     = errors.New("address collision")
	ErrInitializationFailed = errors.New("initialization failed")
	ErrValidation           = errors.New("validation error")
)

// AppError pairs a sentinel (for errors.Is checks) with a
// human-readable message, and optionally the input field at fault.
type AppError struct {
	Err     error  // sentinel, possibly wrapping a cause
	Message string // human-readable description
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized indicates the caller's authenticated identity does not
// hold the role the operation requires.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NotInitialized indicates an operation other than initialize was
// invoked on an uninitialized instance.
func NotInitialized(instance string) *AppError {
	return &AppError{
		Err:     ErrNotInitialized,
		Message: fmt.Sprintf("instance %s is not initialized", instance),
	}
}

// AlreadyInitialized indicates a second initialize call. The first
// call's state is untouched.
func AlreadyInitialized(instance string) *AppError {
	return &AppError{
		Err:     ErrAlreadyInitialized,
		Message: fmt.Sprintf("instance %s is already initialized", instance),
	}
}

// InvalidScore indicates a badge score outside [0, 10000].
func InvalidScore(score uint32) *AppError {
	return &AppError{
		Err:     ErrInvalidScore,
		Message: fmt.Sprintf("badge score %d is out of range [0, 10000]", score),
		Field:   "score",
	}
}

// AddressCollision indicates a deploy with a (deployer, code, salt)
// triple that already produced an instance.
func AddressCollision(address string) *AppError {
	return &AppError{
		Err:     ErrAddressCollision,
		Message: fmt.Sprintf("an instance already exists at %s", address),
	}
}

// InitializationFailed wraps an initializer's own error. Both
// ErrInitializationFailed and the cause's sentinel survive errors.Is,
// so a failed deploy with an out-of-range seed badge matches
// ErrInitializationFailed and ErrInvalidScore.
func InitializationFailed(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrInitializationFailed, cause),
		Message: fmt.Sprintf("initializer failed: %v", cause),
	}
}
