package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeInvalidState      = "INVALID_STATE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeExternalService   = "EXTERNAL_SERVICE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input for validation errors
	Field string `json:"field,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, shared.ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error naming the invalid field
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates a not-found error for the given resource
func NewNotFoundError(resource, key string) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %q not found", resource, key))
}

// NewConflictError creates a duplicate-key error for the given resource
func NewConflictError(resource, key string) *DomainError {
	return NewDomainError(CodeAlreadyExists, fmt.Sprintf("%s %q already exists", resource, key))
}

// NewInvalidTransitionError creates an error for a rejected status change
func NewInvalidTransitionError(from, to string) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf("cannot transition from %s to %s", from, to))
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists     = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput      = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidState      = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
)

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a duplicate-key error
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidTransition reports whether err is a rejected state change
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
