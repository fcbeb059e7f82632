package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalid           ErrorCode = "INVALID"
	ErrCodeVersionConflict   ErrorCode = "VERSION_CONFLICT"
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrCodeHasLinkedChildren ErrorCode = "HAS_LINKED_CHILDREN"
	ErrCodePublishFailed     ErrorCode = "PUBLISH_FAILED"
	ErrCodeMalformedEvent    ErrorCode = "MALFORMED_EVENT"
	ErrCodeAssemblyFailed    ErrorCode = "ASSEMBLY_FAILED"
	ErrCodeWriteFailed       ErrorCode = "WRITE_FAILED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal          ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any domain error carrying the same code, so wrapped errors
// compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrRecordNotFound    = NewError(ErrCodeNotFound, "record not found")
	ErrSnapshotNotFound  = NewError(ErrCodeNotFound, "snapshot not found")
	ErrVersionConflict   = NewError(ErrCodeVersionConflict, "version conflict")
	ErrAlreadyExists     = NewError(ErrCodeAlreadyExists, "record already exists")
	ErrHasLinkedChildren = NewError(ErrCodeHasLinkedChildren, "category has linked products")
	ErrPublishFailed     = NewError(ErrCodePublishFailed, "event publish failed")
	ErrMalformedEvent    = NewError(ErrCodeMalformedEvent, "malformed event")
	ErrAssemblyFailed    = NewError(ErrCodeAssemblyFailed, "catalog assembly failed")
	ErrWriteFailed       = NewError(ErrCodeWriteFailed, "snapshot write failed")
	ErrUnauthorized      = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden         = NewError(ErrCodeForbidden, "owner mismatch")
	ErrInvalidPayload    = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
