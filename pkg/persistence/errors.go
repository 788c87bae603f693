package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates no definition exists for the given identifier or key in the tenant.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionAlreadyExists indicates the tenant already has a definition with the same key.
	ErrDefinitionAlreadyExists = errors.New("workflow definition already exists")

	// ErrInstanceNotFound indicates no instance exists for the given identifier in the tenant.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceAlreadyExists indicates an instance with the same identifier already exists.
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists")

	// ErrVersionConflict indicates the stored row was changed by another writer.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")
)

// DefinitionError wraps definition-related errors with additional context.
type DefinitionError struct {
	Op           string // Operation being performed (e.g., "GetByID", "Update")
	TenantID     string
	DefinitionID string
	Key          string
	Err          error
}

func (e *DefinitionError) Error() string {
	target := e.DefinitionID
	if target == "" {
		target = "key " + e.Key
	}

	return fmt.Sprintf("%s operation failed for definition %s in tenant %s: %v", e.Op, target, e.TenantID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewDefinitionError(op, tenantID, definitionID string, err error) *DefinitionError {
	return &DefinitionError{
		Op:           op,
		TenantID:     tenantID,
		DefinitionID: definitionID,
		Err:          err,
	}
}

func NewDefinitionKeyError(op, tenantID, key string, err error) *DefinitionError {
	return &DefinitionError{
		Op:       op,
		TenantID: tenantID,
		Key:      key,
		Err:      err,
	}
}

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string
	TenantID   string
	InstanceID string
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s in tenant %s: %v", e.Op, e.InstanceID, e.TenantID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewInstanceError(op, tenantID, instanceID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		TenantID:   tenantID,
		InstanceID: instanceID,
		Err:        err,
	}
}

// IsDefinitionNotFound checks if an error indicates a definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

func IsDefinitionAlreadyExists(err error) bool {
	return errors.Is(err, ErrDefinitionAlreadyExists)
}

// IsInstanceNotFound checks if an error indicates an instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsVersionConflict checks if an error indicates a lost compare-and-swap.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound reports whether err is any of the not found errors.
func IsNotFound(err error) bool {
	return IsDefinitionNotFound(err) || IsInstanceNotFound(err)
}
