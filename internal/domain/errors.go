package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals invalid input rejected before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrDuplicateField signals a field name collision inside a schema.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrBackend signals a failure reported by the index store.
	ErrBackend = errors.New("backend error")
)

// Validationf builds an ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// DuplicateFieldError reports the colliding field name.
type DuplicateFieldError struct {
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateField.Error(), e.Name)
}

func (e *DuplicateFieldError) Unwrap() error { return ErrDuplicateField }

// BackendError keeps the backend diagnostic of a failed operation.
type BackendError struct {
	Op  string
	Err error
}

// NewBackendError wraps err as a BackendError; nil stays nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackend.Error(), e.Op, e.Err)
}

// Unwrap exposes both the ErrBackend kind and the original cause.
func (e *BackendError) Unwrap() []error { return []error{ErrBackend, e.Err} }

// ItemError is a per-document failure inside a bulk commit or delete.
type ItemError struct {
	Collection string `json:"collection"`
	DocumentID string `json:"documentId"`
	Reason     string `json:"reason"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Collection, e.DocumentID, e.Reason)
}
