package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CORSConfig represents the cross-origin policy of the HTTP server.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods   []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders   []string `yaml:"allowed_headers,omitempty"`
	AllowCredentials *bool    `yaml:"allow_credentials,omitempty"`
}

// HTTPServerConfig represents listener settings.
type HTTPServerConfig struct {
	Host            string     `yaml:"host,omitempty"`             // default: 0.0.0.0
	Port            int        `yaml:"port,omitempty"`             // default: 6677
	GRPC            string     `yaml:"grpc,omitempty"`             // gRPC health address, empty disables it
	ShutdownTimeout int        `yaml:"shutdown_timeout,omitempty"` // seconds
	CORS            CORSConfig `yaml:"cors,omitempty"`
}

// Addr returns the host:port the HTTP server listens on.
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AnthropicConfig represents configuration for Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // Anthropic API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// OllamaConfig represents configuration for Ollama LLM provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model string `yaml:"model,omitempty"` // Default model name
}

// OpenAIConfig represents configuration for OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// AgentConfig represents the settings of the chat agent.
type AgentConfig struct {
	Model         string   `yaml:"model,omitempty"` // empty uses the provider default
	SystemPrompt  string   `yaml:"system_prompt,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	MaxTokens     int64    `yaml:"max_tokens,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`
}

// SummaryConfig represents the settings of the summarizer.
type SummaryConfig struct {
	Model     string `yaml:"model,omitempty"` // empty uses the provider default
	MaxTokens int64  `yaml:"max_tokens,omitempty"`
}

// ServerConfig represents the configuration of the summarizerd daemon.
type ServerConfig struct {
	Server HTTPServerConfig `yaml:"server,omitempty"`

	// LLM provider configurations
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`

	// Ordered provider preference
	LLMProviders []string `yaml:"llm_providers,omitempty"`

	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Summary SummaryConfig `yaml:"summary,omitempty"`

	// Channel capacity between the producer and the HTTP writer, 0 is unbuffered
	RelayBuffer int `yaml:"relay_buffer,omitempty"`
}

// DefaultServerConfig returns the configuration used when no file is present.
func DefaultServerConfig() *ServerConfig {
	allowCredentials := true
	agentTemperature := 0.0
	return &ServerConfig{
		Server: HTTPServerConfig{
			Host:            "0.0.0.0",
			Port:            6677,
			ShutdownTimeout: 10,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"*"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: &allowCredentials,
			},
		},
		LLMProviders: []string{llm.ProviderOpenAI},
		Ollama: OllamaConfig{
			Host: llm.DefaultOllamaHost,
		},
		OpenAI: OpenAIConfig{
			Model: llm.DefaultOpenAIModel,
		},
		Anthropic: AnthropicConfig{
			Model: llm.DefaultAnthropicModel,
		},
		Agent: AgentConfig{
			SystemPrompt:  "You are a helpful assistant.",
			Temperature:   &agentTemperature,
			MaxIterations: 15,
		},
	}
}

// GetServerConfigPath returns the default server config file path.
// Can be overridden via SUMMARIZER_CONFIG_PATH environment variable.
func GetServerConfigPath() string {
	if envPath := os.Getenv("SUMMARIZER_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.summarizerd/config.yaml"
	}
	return filepath.Join(homeDir, ".summarizerd", "config.yaml")
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

// LoadDotEnv loads environment variables from .env style files. Missing files
// are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(expandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %q: %w", p, err)
		}
	}
	return nil
}

// SaveServerConfig saves the server configuration to the specified path.
func SaveServerConfig(cfg *ServerConfig, path string) error {
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

// LoadServerConfig loads server-side configuration.
// Defaults are overlaid with the file at path (if it exists) and then with
// environment overrides.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		expandedPath := expandPath(path)
		if _, err := os.Stat(expandedPath); err == nil {
			data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
			}

			var fileConfig ServerConfig
			if err := yaml.Unmarshal(data, &fileConfig); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}

			if err := mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge config: %w", err)
			}
			keepExplicitZeroes(cfg, &fileConfig)
		}
	}

	if err := applyServerEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keepExplicitZeroes copies pointer fields set in the file. mergo skips
// zero values behind pointers, so an explicit false or 0.0 would be lost.
func keepExplicitZeroes(cfg, fileConfig *ServerConfig) {
	if v := fileConfig.Server.CORS.AllowCredentials; v != nil {
		allow := *v
		cfg.Server.CORS.AllowCredentials = &allow
	}
	if v := fileConfig.Agent.Temperature; v != nil {
		temperature := *v
		cfg.Agent.Temperature = &temperature
	}
}

func applyServerEnv(cfg *ServerConfig) error {
	if host := os.Getenv("SUMMARIZER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SUMMARIZER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid SUMMARIZER_PORT %q", port)
		}
		cfg.Server.Port = p
	}
	return nil
}

// ProviderConfig resolves provider credentials from the config and the
// environment for llm.NewProviderRegistry.
func (c *ServerConfig) ProviderConfig() *llm.ProviderConfig {
	openAIKey, openAIBaseURL, openAIModel, openAIOrg := LoadOpenAIConfig(c)
	anthropicKey, anthropicBaseURL, anthropicModel := LoadAnthropicConfig(c)
	ollamaHost, ollamaModel := LoadOllamaConfig(c)
	return &llm.ProviderConfig{
		AnthropicAPIKey:  anthropicKey,
		AnthropicBaseURL: anthropicBaseURL,
		AnthropicModel:   anthropicModel,
		OllamaHost:       ollamaHost,
		OllamaModel:      ollamaModel,
		OpenAIAPIKey:     openAIKey,
		OpenAIBaseURL:    openAIBaseURL,
		OpenAIModel:      openAIModel,
		OpenAIOrg:        openAIOrg,
	}
}
