package config

import (
	"os"

	"github.com/aschepis/backscratcher/summarizer/llm"
)

// LoadOllamaConfig loads Ollama configuration from server config.
// It returns the host and model to use for creating an Ollama client.
func LoadOllamaConfig(cfg *ServerConfig) (host, model string) {
	if cfg != nil {
		host = cfg.Ollama.Host
		model = cfg.Ollama.Model
	}

	if envHost := os.Getenv("OLLAMA_HOST"); envHost != "" {
		host = envHost
	}
	if envModel := os.Getenv("OLLAMA_MODEL"); envModel != "" {
		model = envModel
	}

	if host == "" {
		host = llm.DefaultOllamaHost
	}

	return host, model
}
