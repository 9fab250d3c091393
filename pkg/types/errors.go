package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of registry errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
)

// Registry error codes. All caller-facing registry failures are terminal for
// their input; none represent transient conditions, so no retry policy applies.
const (
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeNotRegistered     = "NOT_REGISTERED"
	ErrCodeAlreadyGranted    = "ALREADY_GRANTED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidIndex      = "INVALID_INDEX"
	ErrCodeAlreadyBooked     = "ALREADY_BOOKED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// RegistryError represents a structured error in the registry
type RegistryError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// ErrorCode extracts the registry error code from err, or empty string if err
// is not a RegistryError.
func ErrorCode(err error) string {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCode reports whether err carries the given registry error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NewAlreadyRegisteredError creates an error for a duplicate license number or
// a principal that already owns a doctor record.
func NewAlreadyRegisteredError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeAlreadyRegistered,
		Message: message,
	}
}

// NewNotRegisteredError creates an error for an unknown license number.
func NewNotRegisteredError(license string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotRegistered,
		Message: fmt.Sprintf("license number %s is not registered", license),
	}
}

// NewAlreadyGrantedError creates an error for a duplicate permission grant.
func NewAlreadyGrantedError(license, patientID string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeAlreadyGranted,
		Message: fmt.Sprintf("doctor %s already has access to patient %s", license, patientID),
	}
}

// NewUnauthorizedError creates an error for a caller that does not own the
// doctor record it is operating on.
func NewUnauthorizedError(message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeAuthorization,
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewInvalidIndexError creates an error for a slot index outside the doctor's
// slot sequence.
func NewInvalidIndexError(license string, index int) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidIndex,
		Message: fmt.Sprintf("slot index %d is out of range for doctor %s", index, license),
	}
}

// NewAlreadyBookedError creates an error for a slot whose booked flag is set.
func NewAlreadyBookedError(license string, index int) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeAlreadyBooked,
		Message: fmt.Sprintf("slot %d of doctor %s is already booked", index, license),
	}
}

// NewInternalError creates an error for a store or infrastructure failure.
func NewInternalError(message string, cause error) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}
