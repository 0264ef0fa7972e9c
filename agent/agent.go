// Package agent runs a tool-calling chat agent on top of an llm.Client.
//
// The prompt is the classic three-part layout: a system message, the human
// input, and a scratchpad that replays every intermediate step as an
// assistant tool call followed by its tool result. The executor streams
// each model turn, forwarding text deltas to a callback, and loops while the
// model keeps requesting tools.
package agent

import (
	"context"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/rs/zerolog"
)

const (
	// DefaultSystemPrompt is used when the config leaves the prompt empty.
	DefaultSystemPrompt = "You are a helpful assistant."
	// DefaultMaxIterations bounds the model/tool round trips of one Invoke.
	DefaultMaxIterations = 15
	// maxRepeatedFailures stops a model that keeps retrying a failing call.
	maxRepeatedFailures = 3
)

// StreamCallback receives text deltas as the model produces them.
// Returning an error aborts the invocation.
type StreamCallback func(text string) error

// ToolExecutor executes tool calls and describes the available tools.
type ToolExecutor interface {
	Handle(ctx context.Context, toolName string, args []byte) (any, error)
	Specs(patterns ...string) []llm.ToolSpec
}

// Config holds the agent settings.
type Config struct {
	Model         string   // empty uses the client's default
	SystemPrompt  string   // empty uses DefaultSystemPrompt
	Temperature   *float64 // nil means 0
	MaxTokens     int64
	MaxIterations int      // 0 uses DefaultMaxIterations
	Tools         []string // tool name patterns, empty offers every tool
}

// Executor drives the tool loop for one agent. Building an Executor does no
// I/O; the model is only contacted by Invoke.
type Executor struct {
	client   llm.Client
	tools    ToolExecutor
	config   Config
	callback StreamCallback
	logger   zerolog.Logger
}

// New creates an Executor. callback may be nil.
func New(client llm.Client, tools ToolExecutor, cfg Config, callback StreamCallback, logger zerolog.Logger) *Executor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Temperature == nil {
		cfg.Temperature = llm.Float64(0)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Executor{
		client:   client,
		tools:    tools,
		config:   cfg,
		callback: callback,
		logger:   logger.With().Str("component", "agent").Logger(),
	}
}

// Config returns the effective configuration after defaults were applied.
func (e *Executor) Config() Config {
	return e.config
}
