package providers

import (
	"context"
	"time"
)

// Client is the minimal capability contract an external text-generation
// provider must satisfy. Implementations must not retry internally; the
// orchestrator owns retry and fallback policy.
type Client interface {
	// Name returns the stable provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Enhance rewrites input for the given target profile. The caller bounds
	// the attempt with ctx; implementations must respect cancellation.
	Enhance(ctx context.Context, input string, profile Profile) (string, error)
}

// Config holds common configuration for provider adapters.
type Config struct {
	// APIKey for authentication. An empty or placeholder value marks the
	// provider unavailable.
	APIKey string

	// BaseURL for the API (optional override).
	BaseURL string

	// Timeout is the adapter's own HTTP client timeout. The orchestrator
	// enforces its per-attempt deadline independently.
	Timeout time.Duration

	// Model identifies the provider-side model to use.
	Model string
}

// ProviderError represents a failure reported by a provider adapter.
type ProviderError struct {
	// Provider that generated the error.
	Provider string

	// Code is a short machine-readable error code.
	Code string

	// Message is the human-readable error message.
	Message string

	// StatusCode is the HTTP status code, when applicable.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error.
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}
