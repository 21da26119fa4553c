package ai

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// Provider failures. Defined next to models.AIProvider so provider packages
// can return them without importing this package.
var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
	ErrEmptyResponse       = models.ErrEmptyResponse
	ErrQuotaExceeded       = models.ErrQuotaExceeded
)

var (
	ErrUnknownProvider      = errors.New("unknown ai provider")
	ErrNoContent            = errors.New("document has no content to analyze")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDraftSessionNotFound = errors.New("draft session not found or expired")
	ErrDraftNotFound        = errors.New("draft not found in session")
)

type ProviderError = models.ProviderError

// PersistenceError is a store failure inside an orchestrated operation.
// It is the one error Analyze returns to its caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError reports a rejected caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
