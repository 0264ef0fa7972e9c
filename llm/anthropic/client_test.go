package anthropic_test

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
	"github.com/aschepis/backscratcher/summarizer/llm/anthropic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	name string
	data string
}

func newTestClient(t *testing.T, check func(req map[string]any), events ...sseEvent) *anthropic.AnthropicClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		if check != nil {
			check(req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := anthropic.NewAnthropicClient("test-key", srv.URL, "claude-test", zerolog.Nop())
	require.NoError(t, err)
	return client
}

var (
	messageStart = sseEvent{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}`}
	messageDelta = sseEvent{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`}
	messageStop  = sseEvent{"message_stop", `{"type":"message_stop"}`}
)

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	_, err := anthropic.NewAnthropicClient("", "", "claude-test", zerolog.Nop())
	assert.Error(t, err)
}

func TestStreamText(t *testing.T) {
	client := newTestClient(t, func(req map[string]any) {
		assert.Equal(t, "claude-test", req["model"])
		assert.InDelta(t, 0.3, req["temperature"], 0.0001)
		assert.EqualValues(t, 1024, req["max_tokens"])
		system, _ := req["system"].([]any)
		assert.Len(t, system, 1)
	},
		messageStart,
		sseEvent{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Short"}}`},
		sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" summary."}}`},
		sseEvent{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		messageDelta,
		messageStop,
	)

	var chunks []string
	usage, err := llm.StreamText(context.Background(), client, &llm.Request{
		System:      "You are a helpful assistant that summarizes text.",
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "Test text")},
		Temperature: llm.Float64(0.3),
	}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Short", " summary."}, chunks)
	require.NotNil(t, usage)
	assert.Equal(t, int64(10), usage.InputTokens)
	assert.Equal(t, int64(4), usage.OutputTokens)
}

func TestStreamToolUse(t *testing.T) {
	client := newTestClient(t, func(req map[string]any) {
		tools, _ := req["tools"].([]any)
		assert.Len(t, tools, 1)
	},
		messageStart,
		sseEvent{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"example_tool","input":{}}}`},
		sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"x\": "}}`},
		sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Test\"}"}}`},
		sseEvent{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		messageDelta,
		messageStop,
	)

	stream, err := client.Stream(context.Background(), &llm.Request{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Test")},
		Tools: []llm.ToolSpec{{
			Name:        "example_tool",
			Description: "An example tool that processes input.",
			Schema:      llm.ToolSchema{Type: "object", Properties: map[string]any{"x": map[string]any{"type": "string"}}},
		}},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var toolUse *llm.ToolUseBlock
	var args strings.Builder
	var stopped bool
	for stream.Next() {
		ev := stream.Event()
		switch {
		case ev.Type == llm.StreamEventTypeStop:
			stopped = true
		case ev.Delta != nil && ev.Delta.Type == llm.StreamDeltaTypeToolUse:
			toolUse = ev.Delta.ToolUse
		case ev.Delta != nil && ev.Delta.Type == llm.StreamDeltaTypeToolInput:
			args.WriteString(ev.Delta.ToolInput)
		}
	}
	require.NoError(t, stream.Err())
	assert.True(t, stopped)
	require.NotNil(t, toolUse)
	assert.Equal(t, "toolu_1", toolUse.ID)
	assert.JSONEq(t, `{"x":"Test"}`, args.String())
}

func TestToMessageParamsRoles(t *testing.T) {
	params := anthropic.ToMessageParams([]llm.Message{
		llm.NewTextMessage(llm.RoleUser, "Test"),
		llm.NewToolUseMessage([]llm.ToolUseBlock{{ID: "t1", Name: "example_tool", Input: map[string]any{"x": "Test"}}}),
		llm.NewToolResultMessage([]llm.ToolResultBlock{{ID: "t1", Content: "Processed: Test"}}),
	})
	require.Len(t, params, 3)
	assert.EqualValues(t, "user", params[0].Role)
	assert.EqualValues(t, "assistant", params[1].Role)
	assert.EqualValues(t, "user", params[2].Role)
}
