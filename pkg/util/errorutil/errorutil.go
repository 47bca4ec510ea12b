package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the relay and its HTTP surface.
const (
	CodeTransport  = "TRANSPORT_FAILED"
	CodeStore      = "STORE_FAILED"
	CodeConfig     = "CONFIG_INVALID"
	CodeValidation = "VALIDATION_FAILED"
	CodeUnauth     = "UNAUTHORIZED"
	CodeInternal   = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewTransportError reports a failed call to the messaging platform.
func NewTransportError(op string, err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeTransport,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

// NewStoreError reports a failed read or write against the ticket store.
func NewStoreError(op string, err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeStore,
		Message:    op + " failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    details,
		Err:        err,
	}
}

// NewConfigError reports missing or malformed startup configuration.
func NewConfigError(key, reason string) error {
	return &DomainError{
		Code:    CodeConfig,
		Message: fmt.Sprintf("config %s: %s", key, reason),
		Details: map[string]any{"key": key},
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauth, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
