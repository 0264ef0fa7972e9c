package llm

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// Default models used when neither the config nor the caller names one.
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultOllamaHost     = "http://localhost:11434"
)

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider     string
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI and Anthropic
	Organization string // For OpenAI
}

// ProviderConfig holds the resolved credentials and defaults of every provider.
// It is filled from config.ServerConfig so this package does not import config.
type ProviderConfig struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	OllamaHost       string
	OllamaModel      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIOrg        string
}

// ProviderRegistry picks a provider for a call from an ordered preference list.
// Client creation and caching is left to the caller.
type ProviderRegistry struct {
	enabled []string
	mu      sync.RWMutex
	config  *ProviderConfig
}

// NewProviderRegistry creates a registry. The order of enabledProviders is the
// fallback preference order.
func NewProviderRegistry(providerConfig *ProviderConfig, enabledProviders []string) *ProviderRegistry {
	if providerConfig == nil {
		providerConfig = &ProviderConfig{}
	}
	return &ProviderRegistry{
		enabled: lo.Uniq(enabledProviders),
		config:  providerConfig,
	}
}

// EnabledProviders returns the enabled providers in preference order.
func (r *ProviderRegistry) EnabledProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.enabled)
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.enabled, provider)
}

// IsProviderConfigured checks if a provider has the credentials it needs.
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isProviderConfiguredUnlocked(provider)
}

// Resolve returns a ClientKey for the first provider in preferences that is
// enabled and configured. An empty preferences list means the enabled order.
// modelOverride, when set, replaces the provider's default model.
func (r *ProviderRegistry) Resolve(preferences []string, modelOverride string) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(preferences) == 0 {
		preferences = r.enabled
	}
	if len(preferences) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	var lastErr error
	for _, provider := range preferences {
		if !slices.Contains(r.enabled, provider) || !r.isProviderConfiguredUnlocked(provider) {
			continue
		}
		key, err := r.resolveProviderConfig(provider, modelOverride)
		if err != nil {
			lastErr = err
			continue
		}
		return key, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v): %w", preferences, r.enabled, lastErr)
	}
	return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v)", preferences, r.enabled)
}

// isProviderConfiguredUnlocked must be called with r.mu held.
func (r *ProviderRegistry) isProviderConfiguredUnlocked(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		return r.config.AnthropicAPIKey != ""
	case ProviderOllama:
		// host has a default, no key required
		return true
	case ProviderOpenAI:
		return r.config.OpenAIAPIKey != ""
	default:
		return false
	}
}

func (r *ProviderRegistry) resolveProviderConfig(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		key.APIKey = r.config.AnthropicAPIKey
		key.BaseURL = r.config.AnthropicBaseURL
		if key.Model == "" {
			key.Model = lo.CoalesceOrEmpty(r.config.AnthropicModel, DefaultAnthropicModel)
		}

	case ProviderOllama:
		key.Host = lo.CoalesceOrEmpty(r.config.OllamaHost, DefaultOllamaHost)
		if key.Model == "" {
			key.Model = r.config.OllamaModel
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		key.APIKey = r.config.OpenAIAPIKey
		key.BaseURL = r.config.OpenAIBaseURL
		key.Organization = r.config.OpenAIOrg
		if key.Model == "" {
			key.Model = lo.CoalesceOrEmpty(r.config.OpenAIModel, DefaultOpenAIModel)
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}
