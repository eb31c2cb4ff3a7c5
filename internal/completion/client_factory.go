package completion

import (
	"context"
	"fmt"

	"botcursor/internal/config"
)

// NewBackend creates the backend named by cfg.Provider. cfg is expected to be
// resolved (model and base URL filled in) and validated.
func NewBackend(ctx context.Context, cfg config.LLMConfig) (Backend, error) {
	timeout := cfg.GetTimeout()

	switch cfg.Provider {
	case config.ProviderAnthropic:
		c := DefaultAnthropicConfig(cfg.APIKey)
		overrideString(&c.BaseURL, cfg.BaseURL)
		overrideString(&c.Model, cfg.Model)
		c.Timeout = timeout
		return NewAnthropicBackend(c), nil

	case config.ProviderOpenAI, config.ProviderGroq, config.ProviderOllama:
		var c OpenAIConfig
		switch cfg.Provider {
		case config.ProviderOpenAI:
			c = DefaultOpenAIConfig(cfg.APIKey)
		case config.ProviderGroq:
			c = DefaultGroqConfig(cfg.APIKey)
		default:
			c = DefaultOllamaConfig()
			overrideString(&c.APIKey, cfg.APIKey)
		}
		overrideString(&c.BaseURL, cfg.BaseURL)
		overrideString(&c.Model, cfg.Model)
		c.Timeout = timeout
		return NewOpenAIBackend(c), nil

	case config.ProviderGemini:
		c := DefaultGeminiConfig(cfg.APIKey)
		overrideString(&c.BaseURL, cfg.BaseURL)
		overrideString(&c.Model, cfg.Model)
		c.Timeout = timeout
		return NewGeminiBackend(ctx, c)

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %v)", cfg.Provider, config.ValidProviders)
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
