package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/llm/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *openai.OpenAIClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := openai.NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-test", "")
	require.NoError(t, err)
	return client
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

func contentChunk(text string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":%q}}]}`, text)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := openai.NewOpenAIClient("", "", "gpt-test", "")
	assert.Error(t, err)
}

func TestStreamText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		req := readBody(t, r)
		assert.Equal(t, "gpt-test", req["model"])
		assert.Equal(t, true, req["stream"])
		assert.InDelta(t, 0.3, req["temperature"], 0.0001)

		msgs, _ := req["messages"].([]any)
		if assert.Len(t, msgs, 2) {
			first, _ := msgs[0].(map[string]any)
			assert.Equal(t, "system", first["role"])
			assert.Equal(t, "You summarize.", first["content"])
		}

		writeSSE(w,
			contentChunk("Short"),
			contentChunk(" summary."),
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`,
		)
	})

	var chunks []string
	usage, err := llm.StreamText(context.Background(), client, &llm.Request{
		System:      "You summarize.",
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "Test text")},
		Temperature: llm.Float64(0.3),
	}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Short", " summary."}, chunks)
	require.NotNil(t, usage)
	assert.Equal(t, int64(12), usage.InputTokens)
	assert.Equal(t, int64(3), usage.OutputTokens)
}

func TestStreamZeroTemperatureIsSent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)
		_, ok := req["temperature"]
		assert.True(t, ok, "explicit zero temperature must not be omitted")
		writeSSE(w, contentChunk("ok"))
	})

	_, err := llm.StreamText(context.Background(), client, &llm.Request{
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
		Temperature: llm.Float64(0),
	}, func(string) error { return nil })
	require.NoError(t, err)
}

func TestStreamToolCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)
		tools, _ := req["tools"].([]any)
		assert.Len(t, tools, 1)
		assert.Equal(t, "auto", req["tool_choice"])

		writeSSE(w,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"example_tool","arguments":""}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"x\":"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Test\"}"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		)
	})

	stream, err := client.Stream(context.Background(), &llm.Request{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Test")},
		Tools: []llm.ToolSpec{{
			Name:        "example_tool",
			Description: "An example tool that processes input.",
			Schema:      llm.ToolSchema{Type: "object", Properties: map[string]any{"x": map[string]any{"type": "string"}}, Required: []string{"x"}},
		}},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var toolUse *llm.ToolUseBlock
	var args strings.Builder
	var stopped bool
	for stream.Next() {
		ev := stream.Event()
		if ev.Type == llm.StreamEventTypeStop {
			stopped = true
			continue
		}
		if ev.Delta == nil {
			continue
		}
		switch ev.Delta.Type {
		case llm.StreamDeltaTypeToolUse:
			toolUse = ev.Delta.ToolUse
		case llm.StreamDeltaTypeToolInput:
			args.WriteString(ev.Delta.ToolInput)
		}
	}
	require.NoError(t, stream.Err())
	assert.True(t, stopped)
	require.NotNil(t, toolUse)
	assert.Equal(t, "call_1", toolUse.ID)
	assert.Equal(t, "example_tool", toolUse.Name)
	assert.JSONEq(t, `{"x":"Test"}`, args.String())
}

func TestStreamAPIErrorIsClassified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	})

	_, err := client.Stream(context.Background(), &llm.Request{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	})
	require.Error(t, err)
	assert.True(t, llm.IsRateLimitError(err))
}

func TestStreamSendsToolResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)
		msgs, _ := req["messages"].([]any)
		if assert.Len(t, msgs, 3) {
			last, _ := msgs[2].(map[string]any)
			assert.Equal(t, "tool", last["role"])
			assert.Equal(t, "call_1", last["tool_call_id"])
		}
		writeSSE(w, contentChunk("Processed: Test"))
	})

	var got strings.Builder
	_, err := llm.StreamText(context.Background(), client, &llm.Request{
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "Test"),
			llm.NewToolUseMessage([]llm.ToolUseBlock{{ID: "call_1", Name: "example_tool", Input: map[string]any{"x": "Test"}}}),
			llm.NewToolResultMessage([]llm.ToolResultBlock{{ID: "call_1", Content: "Processed: Test"}}),
		},
	}, func(s string) error {
		got.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Processed: Test", got.String())
}
