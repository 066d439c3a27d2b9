package llm

import (
	"fmt"
	"time"

	"github.com/Dryxio/auto-re-agent/internal/config"
)

// New builds a Client from the configured provider.
func New(cfg config.LLMConfig) (Client, error) {
	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid llm timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	switch cfg.Provider {
	case "anthropic", "":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			ac.MaxTokens = cfg.MaxTokens
		}
		ac.Temperature = cfg.Temperature
		ac.Timeout = timeout
		return NewAnthropicClient(ac), nil

	case "openai", "openai-compat":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		oc.Temperature = cfg.Temperature
		oc.Timeout = timeout
		return NewOpenAIClient(oc), nil

	case "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			gc.BaseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			gc.MaxTokens = cfg.MaxTokens
		}
		gc.Temperature = cfg.Temperature
		gc.Timeout = timeout
		return NewGeminiClient(gc), nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}
