package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeForbidden indicates the actor is not allowed to perform the action
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeTransient indicates a retryable infrastructure failure
	ErrorTypeTransient ErrorType = "TRANSIENT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// ErrorCode is the machine-readable reason carried alongside the type.
// Callers branch on codes; messages are for humans.
type ErrorCode string

const (
	CodeInvalidInterval     ErrorCode = "INVALID_INTERVAL"
	CodeInvalidProvider     ErrorCode = "INVALID_PROVIDER"
	CodeForbiddenOwnership  ErrorCode = "FORBIDDEN_OWNERSHIP"
	CodeForbiddenRole       ErrorCode = "FORBIDDEN_ROLE"
	CodeBlockConflict       ErrorCode = "BLOCK_CONFLICT"
	CodeAppointmentConflict ErrorCode = "APPOINTMENT_CONFLICT"
	CodeNotCancellable      ErrorCode = "NOT_CANCELLABLE"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeTransientFailure    ErrorCode = "TRANSIENT_FAILURE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// CodeOf returns the error code of err, or the empty code when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewValidationError creates a generic validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a generic conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewInvalidIntervalError creates a validation error for a malformed interval
func NewInvalidIntervalError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeInvalidInterval,
		Message: message,
	}
}

// NewInvalidProviderError creates a validation error for a provider/tenant mismatch
func NewInvalidProviderError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeInvalidProvider,
		Message: message,
	}
}

// NewForbiddenOwnershipError creates a denial for an actor acting on a provider it does not own
func NewForbiddenOwnershipError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeForbiddenOwnership,
		Message: message,
	}
}

// NewForbiddenRoleError creates a denial for a role with no schedule permissions
func NewForbiddenRoleError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeForbiddenRole,
		Message: message,
	}
}

// NewBlockConflictError creates a conflict error against an existing block
func NewBlockConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeBlockConflict,
		Message: message,
	}
}

// NewAppointmentConflictError creates a conflict error against an existing appointment
func NewAppointmentConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeAppointmentConflict,
		Message: message,
	}
}

// NewNotCancellableError creates an error for an appointment in a terminal non-cancellable state
func NewNotCancellableError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeNotCancellable,
		Message: message,
	}
}

// NewTransientError creates a retryable infrastructure error
func NewTransientError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransient,
		Code:    CodeTransientFailure,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}
