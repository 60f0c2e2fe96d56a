// Package config loads client configuration from YAML with environment
// variable overrides. Defaults, file values, and environment values are
// layered in that order, each layer taking precedence over the last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// OpenAIConfig represents configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`  // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// OllamaConfig represents configuration for the Ollama provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"` // default: "http://localhost:11434"
	Model string `yaml:"model,omitempty"`
}

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	MaxRetries      uint64 `yaml:"max_retries,omitempty"`
	InitialInterval int    `yaml:"initial_interval_ms,omitempty"`
	MaxInterval     int    `yaml:"max_interval_ms,omitempty"`
}

// StoreConfig controls conversation persistence.
type StoreConfig struct {
	Path           string `yaml:"path,omitempty"`            // SQLite database file
	MigrationsPath string `yaml:"migrations_path,omitempty"` // directory of schema migrations
}

// MCPServerConfig represents configuration for an MCP tool server.
type MCPServerConfig struct {
	Command string   `yaml:"command,omitempty"` // For STDIO transport
	URL     string   `yaml:"url,omitempty"`     // For HTTP transport
	Env     []string `yaml:"env,omitempty"`     // Environment variables for STDIO
}

// Config is the top-level client configuration.
type Config struct {
	// Provider selects the default backend: "anthropic", "openai", or
	// "ollama".
	Provider string `yaml:"provider,omitempty"`

	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`

	Retry      RetryConfig                 `yaml:"retry,omitempty"`
	Store      StoreConfig                 `yaml:"store,omitempty"`
	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty"`

	// ChatTimeout bounds a single model call, in seconds.
	ChatTimeout int `yaml:"chat_timeout,omitempty"`
}

// DefaultConfigPath returns the default config file path. Can be
// overridden via the ERGOKIT_CONFIG environment variable.
func DefaultConfigPath() string {
	if envPath := os.Getenv("ERGOKIT_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.ergokit/config.yaml"
	}
	return filepath.Join(homeDir, ".ergokit", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func defaults() Config {
	return Config{
		Provider: "anthropic",
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2:3b",
		},
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: 500,
			MaxInterval:     30000,
		},
		Store: StoreConfig{
			Path:           "~/.ergokit/conversations.db",
			MigrationsPath: "./migrations",
		},
		ChatTimeout: 60,
	}
}

// Load reads configuration from path, merging file values onto defaults
// and environment overrides onto both. A missing file is not an error;
// defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]*MCPServerConfig)
	}
	cfg.Store.Path = expandPath(cfg.Store.Path)
	return &cfg, nil
}

// Save writes the configuration to the specified path, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ERGOKIT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.Anthropic.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_ORG_ID"); v != "" {
		cfg.OpenAI.Organization = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
}
