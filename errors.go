package sqee

import "github.com/kailas-cloud/sqee/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation     = domain.ErrValidation
	ErrNotFound       = domain.ErrNotFound
	ErrAlreadyExists  = domain.ErrAlreadyExists
	ErrDuplicateField = domain.ErrDuplicateField
	ErrBackend        = domain.ErrBackend
)
