package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/aschepis/backscratcher/summarizer/agent"
	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/llm/llmtest"
	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	client llm.Client
	err    error
	models []string
}

func (f *fakeSource) Client(model string) (llm.Client, error) {
	f.models = append(f.models, model)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func newEngine(src ClientSource) *Engine {
	return New(src, Config{
		Summary: summarize.Config{Model: "summary-model"},
	}, zerolog.Nop())
}

func TestStreamSummary(t *testing.T) {
	client := llmtest.NewClient(llmtest.Text("Short", " summary."))
	src := &fakeSource{client: client}
	e := newEngine(src)

	stream, err := e.StreamSummary(context.Background(), summarize.Params{
		Content: "Test text", Percent: 50, Temperature: 0.3,
	})
	require.NoError(t, err)

	out, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", out)
	assert.Equal(t, []string{"summary-model"}, src.models)

	req := client.Requests()[0]
	assert.Contains(t, req.Messages[0].Content[0].Text, "≈50%")
}

func TestStreamSummarySetupError(t *testing.T) {
	e := newEngine(&fakeSource{err: errors.New("no providers enabled")})

	stream, err := e.StreamSummary(context.Background(), summarize.DefaultParams("x"))
	assert.Nil(t, stream)
	assert.ErrorContains(t, err, "no providers enabled")
}

func TestStreamSummaryProviderErrorAtWait(t *testing.T) {
	boom := llm.NewProviderError("OpenAI API error", errors.New("500"))
	e := newEngine(&fakeSource{client: llmtest.NewClient(llmtest.Failure(boom))})

	stream, err := e.StreamSummary(context.Background(), summarize.DefaultParams("x"))
	require.NoError(t, err)

	var tokens []string
	for tok := range stream.Tokens() {
		tokens = append(tokens, tok)
	}
	assert.Empty(t, tokens)
	assert.ErrorIs(t, stream.Wait(), boom)
}

func TestStreamResponse(t *testing.T) {
	e := newEngine(&fakeSource{client: llmtest.NewClient(llmtest.Text("Hi", " from", " agent"))})

	stream, err := e.StreamResponse(context.Background(), "Test")
	require.NoError(t, err)

	out, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi from agent", out)
}

func TestStreamResponseWithTool(t *testing.T) {
	e := newEngine(&fakeSource{client: llmtest.NewClient(
		llmtest.ToolCall("call_1", "example_tool", `{"input":"Test"}`),
		llmtest.Text("Processed: Test"),
	)})

	stream, err := e.StreamResponse(context.Background(), "Test")
	require.NoError(t, err)

	out, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Processed: Test", out)
}

func TestStreamResponseFallbackWhenAgentFails(t *testing.T) {
	e := newEngine(&fakeSource{client: llmtest.NewClient(llmtest.Failure(errors.New("provider down")))})

	stream, err := e.StreamResponse(context.Background(), "Test")
	require.NoError(t, err)

	out, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackOutput, out)
}

func TestStreamResponsePartialOutputKeepsTokens(t *testing.T) {
	turn := llmtest.Text("partial")
	turn.Events = turn.Events[:1]
	turn.StreamErr = errors.New("connection reset")
	e := newEngine(&fakeSource{client: llmtest.NewClient(turn)})

	stream, err := e.StreamResponse(context.Background(), "Test")
	require.NoError(t, err)

	out, err := stream.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", out)
}

func TestStreamResponseSetupError(t *testing.T) {
	e := newEngine(&fakeSource{err: errors.New("openai API key is required")})

	_, err := e.StreamResponse(context.Background(), "Test")
	assert.Error(t, err)
}

func TestRespondNodeOutput(t *testing.T) {
	e := newEngine(&fakeSource{client: llmtest.NewClient(llmtest.Text("answer"))})

	state, err := e.Respond(context.Background(), "Test", nil)
	require.NoError(t, err)
	assert.Equal(t, "Test", state.Input)
	assert.Equal(t, "answer", state.Output)
}

func TestRespondNodeFallback(t *testing.T) {
	e := newEngine(&fakeSource{client: llmtest.NewClient(llmtest.Failure(errors.New("boom")))})

	state, err := e.Respond(context.Background(), "Test", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackOutput, state.Output)
}

func TestResponseGraphRunsAgentOnce(t *testing.T) {
	client := llmtest.NewClient(llmtest.Text("first"), llmtest.Text("second"))
	e := newEngine(&fakeSource{client: client})

	g, err := e.buildGraph(context.Background(), agent.New(client, e.tools, e.config.Agent, nil, zerolog.Nop()))
	require.NoError(t, err)

	state, err := g.Invoke(context.Background(), AgentState{Input: "Test"})
	require.NoError(t, err)
	assert.Equal(t, AgentState{Input: "Test", Output: "first"}, state)
	assert.Len(t, client.Requests(), 1)
}

func TestClientPoolCachesClients(t *testing.T) {
	registry := llm.NewProviderRegistry(&llm.ProviderConfig{
		OpenAIAPIKey: "sk-test",
		OllamaModel:  "llama3.2:3b",
	}, []string{llm.ProviderOpenAI, llm.ProviderOllama})
	pool := NewClientPool(registry, zerolog.Nop())

	a, err := pool.Client("")
	require.NoError(t, err)
	b, err := pool.Client("")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := pool.Client("gpt-4o-mini")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestClientPoolNoProvider(t *testing.T) {
	registry := llm.NewProviderRegistry(&llm.ProviderConfig{}, []string{llm.ProviderOpenAI})
	pool := NewClientPool(registry, zerolog.Nop())

	_, err := pool.Client("")
	assert.Error(t, err)
}
