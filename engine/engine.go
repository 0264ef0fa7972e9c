// Package engine assembles the per-request pipelines: a summary streamed
// straight from the model, and an agent answer produced by a one-node graph.
// Both run as a relay producer so the caller can forward tokens while the
// model is still generating.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aschepis/backscratcher/summarizer/agent"
	"github.com/aschepis/backscratcher/summarizer/relay"
	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/aschepis/backscratcher/summarizer/tools"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
)

// FallbackOutput replaces the agent answer when the agent fails.
const FallbackOutput = "An error occurred while processing your request."

const (
	responseGraphName = "response"
	agentNodeName     = "agent" // the only node of the response graph
)

// AgentState is threaded through the response graph.
type AgentState struct {
	Input  string
	Output string
}

// Config holds the engine settings.
type Config struct {
	Agent       agent.Config
	Summary     summarize.Config
	RelayBuffer int
}

// Engine builds pipelines on demand. It is safe for concurrent use.
type Engine struct {
	clients ClientSource
	tools   *tools.Registry
	config  Config
	logger  zerolog.Logger
}

// New creates an Engine. The tool registry is populated with the example
// tools.
func New(clients ClientSource, cfg Config, logger zerolog.Logger) *Engine {
	reg := tools.NewRegistry(logger)
	reg.RegisterExampleTools()
	return &Engine{
		clients: clients,
		tools:   reg,
		config:  cfg,
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

// StreamSummary starts a summary of params. Setup errors are returned
// directly; provider errors surface from the stream's Wait.
func (e *Engine) StreamSummary(ctx context.Context, params summarize.Params) (*relay.Stream, error) {
	client, err := e.clients.Client(e.config.Summary.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM client: %w", err)
	}
	s := summarize.New(client, e.config.Summary, e.logger)

	return relay.Start(ctx, e.config.RelayBuffer, func(ctx context.Context, emit relay.Emit) error {
		return s.Stream(ctx, params, emit)
	}, e.logger), nil
}

// StreamResponse starts the agent on content and streams its tokens.
func (e *Engine) StreamResponse(ctx context.Context, content string) (*relay.Stream, error) {
	if _, err := e.clients.Client(e.config.Agent.Model); err != nil {
		return nil, fmt.Errorf("failed to get LLM client: %w", err)
	}

	return relay.Start(ctx, e.config.RelayBuffer, func(ctx context.Context, emit relay.Emit) error {
		var emitted bool
		callback := func(text string) error {
			emitted = true
			return emit(text)
		}

		state, err := e.Respond(ctx, content, callback)
		if err != nil {
			return err
		}
		// Nothing reached the client; send the fallback so the reply is not empty.
		if !emitted && state.Output == FallbackOutput {
			return emit(state.Output)
		}
		return nil
	}, e.logger), nil
}

// Respond runs the response graph once. callback receives the agent's text
// deltas and may be nil.
func (e *Engine) Respond(ctx context.Context, content string, callback agent.StreamCallback) (AgentState, error) {
	client, err := e.clients.Client(e.config.Agent.Model)
	if err != nil {
		return AgentState{}, fmt.Errorf("failed to get LLM client: %w", err)
	}
	exec := agent.New(client, e.tools, e.config.Agent, callback, e.logger)

	g, err := e.buildGraph(ctx, exec)
	if err != nil {
		return AgentState{}, err
	}
	return g.Invoke(ctx, AgentState{Input: content})
}

// buildGraph compiles START -> agent -> END around exec.
func (e *Engine) buildGraph(ctx context.Context, exec *agent.Executor) (compose.Runnable[AgentState, AgentState], error) {
	g := compose.NewGraph[AgentState, AgentState]()
	if err := g.AddLambdaNode(agentNodeName, compose.InvokableLambda(e.agentNode(exec))); err != nil {
		return nil, fmt.Errorf("failed to add %s node: %w", agentNodeName, err)
	}
	if err := g.AddEdge(compose.START, agentNodeName); err != nil {
		return nil, fmt.Errorf("failed to add entry edge: %w", err)
	}
	if err := g.AddEdge(agentNodeName, compose.END); err != nil {
		return nil, fmt.Errorf("failed to add exit edge: %w", err)
	}

	runnable, err := g.Compile(ctx, compose.WithGraphName(responseGraphName))
	if err != nil {
		return nil, fmt.Errorf("failed to compile response graph: %w", err)
	}
	return runnable, nil
}

// agentNode invokes the agent and stores its answer. Agent failures are
// logged and replaced by FallbackOutput; the node itself never fails.
func (e *Engine) agentNode(exec *agent.Executor) func(context.Context, AgentState) (AgentState, error) {
	return func(ctx context.Context, state AgentState) (AgentState, error) {
		res, err := exec.Invoke(ctx, state.Input, nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				e.logger.Debug().Err(err).Msg("Agent canceled")
			} else {
				e.logger.Error().Err(err).Msg("Error executing agent node")
			}
			state.Output = FallbackOutput
			return state, nil
		}

		e.logger.Debug().
			Int("steps", len(res.Steps)).
			Str("stop_reason", res.StopReason).
			Int64("output_tokens", res.Usage.OutputTokens).
			Msg("Agent finished")
		state.Output = res.Output
		return state, nil
	}
}
