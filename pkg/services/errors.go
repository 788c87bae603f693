// Package services provides definition and instance lifecycle operations on top of the engine.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidSpec    = errors.New("invalid workflow specification")
	ErrEmptyTenantID  = errors.New("tenant ID cannot be empty")
	ErrKeyImmutable   = errors.New("workflow key cannot be changed")

	// Trigger did not match any transition (422 Unprocessable Entity).
	ErrInvalidTrigger = errors.New("invalid trigger")

	// Business Logic Conflicts (409 Conflict).
	ErrDefinitionInactive = errors.New("workflow definition is not active")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSpec) ||
		errors.Is(err, ErrEmptyTenantID) ||
		errors.Is(err, ErrKeyImmutable)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDefinitionInactive)
}

// IsInvalidTrigger checks if a trigger was rejected because no transition matched.
func IsInvalidTrigger(err error) bool {
	return errors.Is(err, ErrInvalidTrigger)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
