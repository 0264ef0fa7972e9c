package main

import (
	"fmt"
	"os"

	"github.com/aschepis/backscratcher/summarizer/agent"
	"github.com/aschepis/backscratcher/summarizer/config"
	"github.com/aschepis/backscratcher/summarizer/engine"
	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPathFlag string
	modelFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "summarizerd",
	Short: "Streaming summarization and agent chat service",
	Long: `summarizerd streams LLM summaries and agent responses token by token.

Without a subcommand it runs the HTTP server, same as "summarizerd serve".

Configuration is read from ~/.summarizerd/config.yaml (or
$SUMMARIZER_CONFIG_PATH). A .env file in the working directory is loaded
first; variables already set in the environment win.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "", "Path to config file (default: $SUMMARIZER_CONFIG_PATH or ~/.summarizerd/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use for both pipelines (provider-specific)")
	addServeFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads .env and the config file. Flags are applied by the
// caller.
func loadConfig() (*config.ServerConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := configPathFlag
	if path == "" {
		path = config.GetServerConfigPath()
	}
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}

	if modelFlag != "" {
		cfg.Agent.Model = modelFlag
		cfg.Summary.Model = modelFlag
	}
	return cfg, nil
}

// newEngine wires the provider registry, the client pool and the pipelines.
func newEngine(cfg *config.ServerConfig, logger zerolog.Logger) *engine.Engine {
	registry := llm.NewProviderRegistry(cfg.ProviderConfig(), cfg.LLMProviders)
	logger.Info().
		Strs("enabled", registry.EnabledProviders()).
		Msg("LLM providers configured")

	clients := engine.NewClientPool(registry, logger)
	return engine.New(clients, engine.Config{
		Agent: agent.Config{
			Model:         cfg.Agent.Model,
			SystemPrompt:  cfg.Agent.SystemPrompt,
			Temperature:   cfg.Agent.Temperature,
			MaxTokens:     cfg.Agent.MaxTokens,
			MaxIterations: cfg.Agent.MaxIterations,
		},
		Summary: summarize.Config{
			Model:     cfg.Summary.Model,
			MaxTokens: cfg.Summary.MaxTokens,
		},
		RelayBuffer: cfg.RelayBuffer,
	}, logger)
}
