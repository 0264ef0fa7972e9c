package engine

import (
	"fmt"
	"sync"

	"github.com/aschepis/backscratcher/summarizer/llm"
	llmanthropic "github.com/aschepis/backscratcher/summarizer/llm/anthropic"
	llmollama "github.com/aschepis/backscratcher/summarizer/llm/ollama"
	llmopenai "github.com/aschepis/backscratcher/summarizer/llm/openai"
	"github.com/rs/zerolog"
)

// ClientSource hands out LLM clients. model may be empty to use the
// provider default.
type ClientSource interface {
	Client(model string) (llm.Client, error)
}

// ClientPool resolves providers through an llm.ProviderRegistry and caches
// one client per distinct ClientKey.
type ClientPool struct {
	registry *llm.ProviderRegistry
	mu       sync.RWMutex
	cache    map[llm.ClientKey]llm.Client
	logger   zerolog.Logger
}

// NewClientPool creates a ClientPool over registry.
func NewClientPool(registry *llm.ProviderRegistry, logger zerolog.Logger) *ClientPool {
	return &ClientPool{
		registry: registry,
		cache:    make(map[llm.ClientKey]llm.Client),
		logger:   logger.With().Str("component", "clientPool").Logger(),
	}
}

// Client returns a client for the first usable provider.
func (p *ClientPool) Client(model string) (llm.Client, error) {
	key, err := p.registry.Resolve(nil, model)
	if err != nil {
		return nil, err
	}
	return p.getOrCreateClient(key)
}

// getOrCreateClient gets or creates an LLM client for the given ClientKey with caching.
func (p *ClientPool) getOrCreateClient(key *llm.ClientKey) (llm.Client, error) {
	p.mu.RLock()
	if client, ok := p.cache[*key]; ok {
		p.mu.RUnlock()
		return client, nil
	}
	p.mu.RUnlock()

	// Not in cache - create new client (no lock held during creation)
	client, err := newProviderClient(key, p.logger)
	if err != nil {
		return nil, err
	}
	client = llm.WrapWithMiddleware(client, llm.NewLoggingMiddleware(p.logger, key.Provider))

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another goroutine might have created it while we were creating
	if existing, ok := p.cache[*key]; ok {
		return existing, nil
	}
	p.cache[*key] = client
	p.logger.Info().Str("provider", key.Provider).Str("model", key.Model).Msg("Created LLM client")
	return client, nil
}

func newProviderClient(key *llm.ClientKey, logger zerolog.Logger) (llm.Client, error) {
	switch key.Provider {
	case llm.ProviderAnthropic:
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		client, err := llmanthropic.NewAnthropicClient(key.APIKey, key.BaseURL, key.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return client, nil

	case llm.ProviderOllama:
		client, err := llmollama.NewOllamaClient(key.Host, key.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil

	case llm.ProviderOpenAI:
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		client, err := llmopenai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Model, key.Organization)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
}
