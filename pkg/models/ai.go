// Package models contains shared data models used across the contractlens codebase.
package models

import "context"

// AIProvider is the core interface that all LLM integrations must implement.
// Services depend on this interface, never on a concrete provider.
type AIProvider interface {
	// Generate issues one completion request and returns the raw model text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string
	// Model returns the model the provider sends requests to.
	Model() string
}

// GenerateRequest is the input to a single completion call.
// System is optional; providers without a system role prepend it to Prompt.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int
	JSON      bool // ask for a JSON object response where the provider supports it
}
