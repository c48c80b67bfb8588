package model

import (
	"context"
	"fmt"
	"os"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ProviderConfig holds the resolved provider, credentials, and sampling
// settings.
type ProviderConfig struct {
	Provider    Provider
	APIKey      string
	Model       string
	Temperature float64
}

// DetectProvider resolves a provider from the environment.
// Priority: ANTHROPIC_API_KEY, then GEMINI_API_KEY.
func DetectProvider() (*ProviderConfig, error) {
	candidates := []struct {
		envVar   string
		provider Provider
	}{
		{"ANTHROPIC_API_KEY", ProviderAnthropic},
		{"GEMINI_API_KEY", ProviderGemini},
	}
	for _, c := range candidates {
		if key := os.Getenv(c.envVar); key != "" {
			return &ProviderConfig{Provider: c.provider, APIKey: key}, nil
		}
	}
	return nil, fmt.Errorf("no API key found; set ANTHROPIC_API_KEY or GEMINI_API_KEY")
}

// NewClient creates a client for the given provider config.
func NewClient(ctx context.Context, cfg *ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		acfg := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			acfg.Model = cfg.Model
		}
		acfg.Temperature = cfg.Temperature
		return NewAnthropicClientWithConfig(acfg), nil
	case ProviderGemini:
		gcfg := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gcfg.Model = cfg.Model
		}
		gcfg.Temperature = float32(cfg.Temperature)
		return NewGeminiClientWithConfig(ctx, gcfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
