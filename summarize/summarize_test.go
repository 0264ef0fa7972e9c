package summarize

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/llm/llmtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClamps(t *testing.T) {
	tests := []struct {
		name        string
		in          Params
		percent     int
		temperature float64
	}{
		{"in range", Params{Percent: 50, Temperature: 0.3}, 50, 0.3},
		{"percent too high", Params{Percent: 150, Temperature: 0.3}, 100, 0.3},
		{"percent zero", Params{Percent: 0, Temperature: 0.3}, 1, 0.3},
		{"percent negative", Params{Percent: -5, Temperature: 0.3}, 1, 0.3},
		{"temperature too high", Params{Percent: 30, Temperature: 1.5}, 30, 1.0},
		{"temperature negative", Params{Percent: 30, Temperature: -0.5}, 30, 0.0},
		{"temperature NaN", Params{Percent: 30, Temperature: math.NaN()}, 30, DefaultTemperature},
		{"temperature +Inf", Params{Percent: 30, Temperature: math.Inf(1)}, 30, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.percent, got.Percent)
			assert.InDelta(t, tt.temperature, got.Temperature, 1e-9)
		})
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams("text")
	assert.Equal(t, 30, p.Percent)
	assert.False(t, p.Bullets)
	assert.InDelta(t, 0.3, p.Temperature, 1e-9)
}

func TestPromptExact(t *testing.T) {
	p := Params{Content: "Test text", Percent: 50}
	assert.Equal(t,
		"You are an expert text-summarizer.\n"+
			"Summarize the following text to ≈50% of its original length. Return the summary as one concise paragraph.\n"+
			"\n"+
			"Text:\n"+
			"Test text",
		p.Prompt())
}

func TestBulletsChangesOnlyInstruction(t *testing.T) {
	paragraph := Params{Content: "Some content", Percent: 40}
	bullets := paragraph
	bullets.Bullets = true

	assert.Equal(t, "Return the summary as one concise paragraph.", paragraph.Style())
	assert.Equal(t, "Return the summary as a bulleted list where each bullet is a short sentence.", bullets.Style())

	withoutStyle := func(p Params) string {
		return strings.Replace(p.Prompt(), p.Style(), "", 1)
	}
	assert.Equal(t, withoutStyle(paragraph), withoutStyle(bullets))
}

func TestRequestUsesClampedValues(t *testing.T) {
	s := New(llmtest.NewClient(), Config{Model: "gpt-test", MaxTokens: 256}, zerolog.Nop())

	req := s.Request(Params{Content: "x", Percent: 500, Temperature: 3})
	assert.Equal(t, "gpt-test", req.Model)
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, int64(256), req.MaxTokens)
	assert.Empty(t, req.Tools)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 1.0, *req.Temperature, 1e-9)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content[0].Text, "≈100%")
}

func TestStreamForwardsTokens(t *testing.T) {
	client := llmtest.NewClient(llmtest.Text("Short", " summary", "."))
	s := New(client, Config{}, zerolog.Nop())

	var tokens []string
	err := s.Stream(context.Background(), Params{Content: "Test text", Percent: 50, Temperature: 0.3}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Short", " summary", "."}, tokens)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Temperature)
	assert.InDelta(t, 0.3, *reqs[0].Temperature, 1e-9)
}

func TestStreamProviderError(t *testing.T) {
	boom := llm.NewRateLimitError("slow down", nil, errors.New("429"))
	s := New(llmtest.NewClient(llmtest.Failure(boom)), Config{}, zerolog.Nop())

	err := s.Stream(context.Background(), DefaultParams("x"), func(string) error { return nil })
	require.Error(t, err)
	assert.True(t, llm.IsRateLimitError(err))
}

func TestStreamEmitError(t *testing.T) {
	s := New(llmtest.NewClient(llmtest.Text("a", "b")), Config{}, zerolog.Nop())
	stop := errors.New("stop")

	var calls int
	err := s.Stream(context.Background(), DefaultParams("x"), func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
