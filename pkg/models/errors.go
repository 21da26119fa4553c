package models

import (
	"errors"
	"fmt"
)

// Sentinel errors every AIProvider implementation maps its failures onto.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrEmptyResponse       = errors.New("empty response")
	ErrQuotaExceeded       = errors.New("ai provider quota exceeded")
)

// ProviderError wraps a failure from a single LLM provider call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError tags err with the provider name unless it is already tagged.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}
