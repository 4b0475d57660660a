package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
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

// NewValidationError reports user-correctable input problems. Details
// carries every missing/invalid field, not just the first.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewPreconditionFailed reports a command issued against a state that
// forbids it, such as launching an unvalidated protocol.
func NewPreconditionFailed(message string) error {
	return NewDomainError("PRECONDITION_FAILED", message, http.StatusConflict, nil)
}

// NewPreconditionRequired reports a command missing required inputs
// that are state-dependent, such as closure without evidence photos.
func NewPreconditionRequired(message string, details map[string]any) error {
	return NewDomainError("PRECONDITION_REQUIRED", message, http.StatusPreconditionRequired, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewConcurrentModification reports a stale-version write; the caller
// must refetch and retry.
func NewConcurrentModification(resource string, expected, actual int64) error {
	return NewDomainError("CONCURRENT_MODIFICATION",
		fmt.Sprintf("%s was modified concurrently", resource),
		http.StatusConflict,
		map[string]any{"expected_version": expected, "actual_version": actual})
}

// NewTransientIO wraps a network/store failure that may succeed on
// retry. Driver-issued create/close commands route these to the
// offline queue instead of surfacing them.
func NewTransientIO(err error) error {
	return &DomainError{
		Code:       "TRANSIENT_IO",
		Message:    "store temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsTransient classifies failures the offline queue should retry:
// explicit TRANSIENT_IO errors, network errors, and deadline expiry.
// Everything else is treated as permanent and dead-lettered.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsCode(err, "TRANSIENT_IO") || IsCode(err, "CONCURRENT_MODIFICATION") {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
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
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
