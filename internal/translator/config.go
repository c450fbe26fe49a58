package translator

import (
	"context"
	"fmt"
	"time"

	"pdf-translator/internal/types"
)

// Options 翻译重试与限流配置
type Options struct {
	Retries           int           // total backend attempts per text
	BaseDelay         time.Duration // first backoff delay, doubled per attempt
	MaxDelay          time.Duration // backoff cap
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // 0 disables rate limiting
	MaxTextLength     int           // in runes
}

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		Retries:       3,
		BaseDelay:     2 * time.Second,
		MaxDelay:      30 * time.Second,
		Timeout:       30 * time.Second,
		MaxTextLength: 5000,
	}
}

// OptionsFromConfig maps the application config onto translator options.
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		Retries:           cfg.Retries,
		BaseDelay:         cfg.RetryBaseDelay(),
		MaxDelay:          cfg.RetryMaxDelay(),
		Timeout:           cfg.RequestTimeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxTextLength:     cfg.MaxTextLength,
	}
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// Validate checks that the options describe a usable retry policy.
func (o Options) Validate() error {
	switch {
	case o.Retries < 1:
		return &ConfigValidationError{Field: "retries", Value: o.Retries, Message: "must be at least 1"}
	case o.BaseDelay < 0:
		return &ConfigValidationError{Field: "base_delay", Value: o.BaseDelay, Message: "must not be negative"}
	case o.MaxDelay < o.BaseDelay:
		return &ConfigValidationError{Field: "max_delay", Value: o.MaxDelay, Message: "must not be below base_delay"}
	case o.Timeout <= 0:
		return &ConfigValidationError{Field: "timeout", Value: o.Timeout, Message: "must be positive"}
	case o.RequestsPerSecond < 0:
		return &ConfigValidationError{Field: "requests_per_second", Value: o.RequestsPerSecond, Message: "must not be negative"}
	case o.MaxTextLength < 1:
		return &ConfigValidationError{Field: "max_text_length", Value: o.MaxTextLength, Message: "must be positive"}
	}
	return nil
}

// Backoff returns the delay before the attempt following attempt n (1-based).
func (o Options) Backoff(n int) time.Duration {
	delay := o.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// NewBackendFromConfig builds the backend selected by cfg.Provider and
// registers both known backends so callers can inspect what is available.
func NewBackendFromConfig(ctx context.Context, cfg *types.Config, apiKey string) (Backend, *Registry, error) {
	registry := NewRegistry()
	_ = registry.Register(NewGoogleBackend(cfg.GoogleEndpoint, cfg.RequestTimeout()))

	if apiKey != "" {
		openaiBackend, err := NewOpenAIBackend(ctx, apiKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.RequestTimeout())
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrConfig, "failed to create openai backend", err)
		}
		_ = registry.Register(openaiBackend)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	if provider == ProviderOpenAI && apiKey == "" {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrConfig,
			"openai provider needs an API key",
			"set openai_api_key, PDFT_OPENAI_API_KEY or OPENAI_API_KEY, or use provider google", nil)
	}

	backend, err := registry.Backend(provider)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrConfig, "unknown translation provider", err)
	}
	return backend, registry, nil
}
