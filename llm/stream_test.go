package llm_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/llm/llmtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamText(t *testing.T) {
	turn := llmtest.Text("Hel", "", "lo")
	turn.Events = append([]*llm.StreamEvent{llm.ToolUseEvent(&llm.ToolUseBlock{ID: "x", Name: "example_tool"})}, turn.Events...)
	client := llmtest.NewClient(turn)

	var got []string
	usage, err := llm.StreamText(context.Background(), client, &llm.Request{}, func(text string) error {
		got = append(got, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)
	require.NotNil(t, usage)
	assert.Equal(t, int64(3), usage.OutputTokens)
}

func TestStreamTextErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := llm.StreamText(context.Background(), llmtest.NewClient(llmtest.Failure(boom)), &llm.Request{}, func(string) error { return nil })
	assert.ErrorIs(t, err, boom)

	tail := llmtest.Turn{Events: []*llm.StreamEvent{llm.TextEvent("a")}, StreamErr: boom}
	var got strings.Builder
	_, err = llm.StreamText(context.Background(), llmtest.NewClient(tail), &llm.Request{}, func(s string) error {
		got.WriteString(s)
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", got.String())

	stop := errors.New("stop")
	_, err = llm.StreamText(context.Background(), llmtest.NewClient(llmtest.Text("a", "b")), &llm.Request{}, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

// recordingMiddleware notes every hook call and can rewrite stream errors.
type recordingMiddleware struct {
	name    string
	calls   *[]string
	rewrite error
}

func (m recordingMiddleware) BeforeStream(_ context.Context, req *llm.Request) (*llm.Request, error) {
	*m.calls = append(*m.calls, "before:"+m.name)
	return req, nil
}

func (m recordingMiddleware) OnStreamEvent(_ context.Context, _ *llm.Request, ev *llm.StreamEvent) (*llm.StreamEvent, error) {
	if ev.Type == llm.StreamEventTypeStop {
		*m.calls = append(*m.calls, "stop:"+m.name)
	}
	return ev, nil
}

func (m recordingMiddleware) OnStreamError(_ context.Context, _ *llm.Request, err error) error {
	*m.calls = append(*m.calls, "error:"+m.name)
	if m.rewrite != nil {
		return m.rewrite
	}
	return err
}

func TestWrapWithMiddlewareOrdering(t *testing.T) {
	var calls []string
	client := llm.WrapWithMiddleware(llmtest.NewClient(llmtest.Text("ok")),
		recordingMiddleware{name: "a", calls: &calls},
		recordingMiddleware{name: "b", calls: &calls},
	)

	var got strings.Builder
	_, err := llm.StreamText(context.Background(), client, &llm.Request{}, func(s string) error {
		got.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.String())
	assert.Equal(t, []string{"before:a", "before:b", "stop:a", "stop:b"}, calls)
}

func TestWrapWithMiddlewareRewritesError(t *testing.T) {
	var calls []string
	client := llm.WrapWithMiddleware(llmtest.NewClient(llmtest.Failure(errors.New("boom"))),
		recordingMiddleware{name: "a", calls: &calls, rewrite: errors.New("rewritten")},
	)
	_, err := client.Stream(context.Background(), &llm.Request{})
	assert.EqualError(t, err, "rewritten")
	assert.Equal(t, []string{"before:a", "error:a"}, calls)
}

func TestLoggingMiddlewareStream(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	client := llm.WrapWithMiddleware(
		llmtest.NewClient(llmtest.Text("a", "b"), llmtest.Failure(llm.NewRateLimitError("slow", nil, nil))),
		llm.NewLoggingMiddleware(logger, llm.ProviderOpenAI),
	)

	req := &llm.Request{Model: "gpt-test", Temperature: llm.Float64(0.3)}
	var text strings.Builder
	_, err := llm.StreamText(context.Background(), client, req, func(s string) error {
		text.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ab", text.String())

	_, err = client.Stream(context.Background(), req)
	assert.True(t, llm.IsRateLimitError(err))

	out := buf.String()
	assert.Contains(t, out, `"message":"LLM stream"`)
	assert.Contains(t, out, `"message":"LLM stream finished"`)
	assert.Contains(t, out, `"errorType":"rate_limit"`)
	assert.Contains(t, out, `"provider":"openai"`)
}
