package translator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"pdf-translator/internal/types"
)

// TestDefaultOptions tests that DefaultOptions returns a usable retry policy
func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Retries != 3 {
		t.Errorf("Retries should be 3, got %d", opts.Retries)
	}
	if opts.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay should be 2s, got %v", opts.BaseDelay)
	}
	if opts.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay should be 30s, got %v", opts.MaxDelay)
	}
	if opts.Timeout != 30*time.Second {
		t.Errorf("Timeout should be 30s, got %v", opts.Timeout)
	}
	if opts.RequestsPerSecond != 0 {
		t.Errorf("Rate limiting should be off by default, got %v", opts.RequestsPerSecond)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("DefaultOptions should be valid, got: %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
		field  string
	}{
		{"zero retries", func(o *Options) { o.Retries = 0 }, "retries"},
		{"negative base delay", func(o *Options) { o.BaseDelay = -time.Second }, "base_delay"},
		{"max below base", func(o *Options) { o.MaxDelay = time.Second }, "max_delay"},
		{"zero timeout", func(o *Options) { o.Timeout = 0 }, "timeout"},
		{"negative rate", func(o *Options) { o.RequestsPerSecond = -1 }, "requests_per_second"},
		{"zero max length", func(o *Options) { o.MaxTextLength = 0 }, "max_text_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)

			err := opts.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			var validationErr *ConfigValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ConfigValidationError, got %T", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, validationErr.Field)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &types.Config{
		Retries:           5,
		RetryBaseDelayMs:  500,
		RetryMaxDelayMs:   4000,
		Timeout:           12,
		RequestsPerSecond: 2.5,
		MaxTextLength:     800,
	}

	opts := OptionsFromConfig(cfg)
	if opts.Retries != 5 {
		t.Errorf("Retries should be 5, got %d", opts.Retries)
	}
	if opts.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay should be 500ms, got %v", opts.BaseDelay)
	}
	if opts.MaxDelay != 4*time.Second {
		t.Errorf("MaxDelay should be 4s, got %v", opts.MaxDelay)
	}
	if opts.Timeout != 12*time.Second {
		t.Errorf("Timeout should be 12s, got %v", opts.Timeout)
	}
	if opts.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond should be 2.5, got %v", opts.RequestsPerSecond)
	}
	if opts.MaxTextLength != 800 {
		t.Errorf("MaxTextLength should be 800, got %d", opts.MaxTextLength)
	}
}

// TestConfigValidationError tests the ConfigValidationError type
func TestConfigValidationError(t *testing.T) {
	err := &ConfigValidationError{
		Field:   "retries",
		Value:   0,
		Message: "must be at least 1",
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "retries") {
		t.Error("Error string should contain field name")
	}
	if !strings.Contains(errStr, "must be at least 1") {
		t.Error("Error string should contain message")
	}
}
