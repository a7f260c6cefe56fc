package scorer

import (
	"fmt"
	"net/http"
)

// ProviderError represents an error returned by an LLM provider API.
type ProviderError struct {
	// Provider is the name of the LLM provider (e.g., "openai", "anthropic").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	// Zero indicates no HTTP response was received (network error, timeout).
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether the provider rejected the request for rate
// limiting (HTTP 429).
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether the error may succeed on retry: rate limiting
// (429), server errors (5xx), and network errors (no HTTP response).
func (e *ProviderError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}
