package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrInvalidUserType    = errors.New("invalid user type")
	ErrUnknownStatus      = errors.New("unknown status")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStorage            = errors.New("storage failure")
)

// ValidationError is returned for caller mistakes. It matches both
// ErrValidation and the more specific Reason under errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Reason  error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Reason}
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
