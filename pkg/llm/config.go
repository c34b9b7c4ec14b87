package llm

import (
	"log/slog"
	"net/http"
	"time"
)

// ProviderConfig holds the settings shared by every backend.
type ProviderConfig struct {
	BaseURL     string            // e.g. "http://localhost:11434" or "https://openrouter.ai/api/v1"
	APIKey      string            // empty for local backends
	Model       string            // default model when a Request leaves it empty
	MaxTokens   int               // default max tokens for responses (4096)
	Headers     map[string]string // additional HTTP headers
	HTTPClient  *http.Client      // custom HTTP client (timeouts, TLS, proxies)
	Retry       RetryConfig
	CostTracker *CostTracker // optional usage accumulation across calls
	Logger      *slog.Logger
}

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries        int           // Max retry attempts (default: 3)
	InitialBackoff    time.Duration // Initial backoff (default: 1s)
	MaxBackoff        time.Duration // Max backoff cap (default: 30s)
	BackoffFactor     float64       // Multiplier per retry (default: 2.0)
	JitterFraction    float64       // Random jitter as fraction of backoff (default: 0.1)
	RetryableStatuses []int         // HTTP codes to retry (default: 429, 529, 500, 502, 503)
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		JitterFraction:    0.1,
		RetryableStatuses: []int{429, 529, 500, 502, 503},
	}
}

// NoRetry disables retries.
func NoRetry() RetryConfig {
	return RetryConfig{MaxRetries: -1}
}

func (c ProviderConfig) withDefaults(baseURL string) ProviderConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Retry.MaxRetries == 0 && c.Retry.InitialBackoff == 0 {
		c.Retry = DefaultRetryConfig()
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	return c
}

func (c ProviderConfig) model(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.Model
}

func (c ProviderConfig) maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.MaxTokens
}
