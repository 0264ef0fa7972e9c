package config

import (
	"os"
)

// LoadAnthropicConfig loads Anthropic configuration from server config.
func LoadAnthropicConfig(cfg *ServerConfig) (apiKey, baseURL, model string) {
	if cfg != nil {
		apiKey = cfg.Anthropic.APIKey
		baseURL = cfg.Anthropic.BaseURL
		model = cfg.Anthropic.Model
	}

	if envAPIKey := os.Getenv("ANTHROPIC_API_KEY"); envAPIKey != "" {
		apiKey = envAPIKey
	}
	if envModel := os.Getenv("ANTHROPIC_MODEL"); envModel != "" {
		model = envModel
	}

	return apiKey, baseURL, model
}
