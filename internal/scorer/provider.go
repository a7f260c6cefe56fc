package scorer

import (
	"context"
	"fmt"
	"time"
)

// CompletionClient is the transport the citation scorer needs from an LLM
// provider: one prompt in, one raw completion text out. Implementations
// perform a single request per call; retry policy lives in the scorer so
// backoff semantics are uniform across providers.
type CompletionClient interface {
	// Complete sends one prompt and returns the raw completion text.
	// Provider failures are returned as *ProviderError so the scorer can
	// classify them for backoff.
	Complete(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// ClientConfig holds the parameters needed to create a CompletionClient.
// It is defined here to keep the scorer package free of the config package.
type ClientConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// APIKey is the provider credential. Required; validated up front so a
	// missing credential fails before any scoring request is attempted.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL (empty means the provider default).
	BaseURL string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// RateLimit is the sustained requests-per-second cap toward the
	// provider; zero disables client-side rate limiting.
	RateLimit float64
	// RateBurst is the rate limiter burst size.
	RateBurst int
}

// NewCompletionClient creates a CompletionClient based on the configuration.
// Supports "openai" and "anthropic" providers. An empty API key is an error
// here, not mid-batch: the scorer must fail fast before issuing requests.
func NewCompletionClient(cfg ClientConfig) (CompletionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("scorer: missing API key for provider %q", cfg.Provider)
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg), nil
	case "anthropic":
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("scorer: unsupported LLM provider: %q", cfg.Provider)
	}
}
