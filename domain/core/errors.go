package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors
	ErrInvalidData      = errors.New("invalid data")
	ErrUnknownModelType = errors.New("unknown model type")

	// Async boundary errors
	ErrTimeout   = errors.New("request timed out")
	ErrCancelled = errors.New("request cancelled")
	ErrClosed    = errors.New("execution context closed")

	// Lookup errors
	ErrNotFound    = errors.New("resource not found")
	ErrFitNotFound = fmt.Errorf("%w: fit", ErrNotFound)
)

// NewInvalidDataError names the offending field and the violated bound.
func NewInvalidDataError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidData, field, reason)
}

func NewUnknownModelTypeError(tag string) error {
	return fmt.Errorf("%w: %q", ErrUnknownModelType, tag)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsInvalidData(err error) bool {
	return errors.Is(err, ErrInvalidData)
}

func IsUnknownModelType(err error) bool {
	return errors.Is(err, ErrUnknownModelType)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBoundaryError reports errors raised only at the async execution boundary.
func IsBoundaryError(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrClosed)
}
