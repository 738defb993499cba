// Package errors defines the error taxonomy shared by all authkit packages.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrConfig is returned for malformed or missing required configuration.
	// Config errors are fatal and never retried.
	ErrConfig = "config"

	// ErrProtocol is returned when an auth server answers with an OAuth/OIDC
	// error payload. The server error code and description are preserved.
	ErrProtocol = "protocol"

	// ErrTransport is returned for HTTP or network level failures.
	ErrTransport = "transport"

	// ErrValidation is returned when token validation fails.
	ErrValidation = "validation"

	// ErrDataIntegrity is returned when stored data fails its validity contract.
	ErrDataIntegrity = "data_integrity"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Code is the machine-readable error code, if one exists. For protocol
	// errors this is the OAuth error code returned by the server
	// (e.g. "invalid_grant", "authorization_pending").
	Code string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new config error
func NewConfigError(message string, cause error) *Error {
	return NewError(ErrConfig, message, cause)
}

// NewProtocolError creates a new protocol error carrying the raw error code
// and description returned by the auth server.
func NewProtocolError(code, description string) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: fmt.Sprintf("%s: %s", code, description),
		Code:    code,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewValidationError creates a new validation error wrapping one of the
// validation kind sentinels.
func NewValidationError(message string, cause error) *Error {
	return NewError(ErrValidation, message, cause)
}

// NewDataIntegrityError creates a new data integrity error
func NewDataIntegrityError(message string, cause error) *Error {
	return NewError(ErrDataIntegrity, message, cause)
}

func isType(err error, errorType string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errorType
}

// IsConfig checks if the error is a config error
func IsConfig(err error) bool {
	return isType(err, ErrConfig)
}

// IsProtocol checks if the error is a protocol error
func IsProtocol(err error) bool {
	return isType(err, ErrProtocol)
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	return isType(err, ErrTransport)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrValidation)
}

// IsDataIntegrity checks if the error is a data integrity error
func IsDataIntegrity(err error) bool {
	return isType(err, ErrDataIntegrity)
}

// ProtocolCode returns the OAuth error code carried by a protocol error, or
// the empty string if err is not a protocol error.
func ProtocolCode(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Type != ErrProtocol {
		return ""
	}
	return e.Code
}
