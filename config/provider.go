package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/llm/anthropic"
	"github.com/ergokit/ergokit/llm/ollama"
	"github.com/ergokit/ergokit/llm/openai"
)

// NewClient creates a provider transport from the configuration's
// selected provider block.
func NewClient(cfg *Config, logger zerolog.Logger) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Organization)
	case "ollama":
		return ollama.New(cfg.Ollama.Host, cfg.Ollama.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Model returns the model name of the configuration's selected provider.
func Model(cfg *Config) string {
	switch cfg.Provider {
	case "openai":
		return cfg.OpenAI.Model
	case "ollama":
		return cfg.Ollama.Model
	default:
		return cfg.Anthropic.Model
	}
}
