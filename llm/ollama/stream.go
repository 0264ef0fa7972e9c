package ollama

import (
	"context"
	"encoding/json"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/ollama/ollama/api"
)

// ollamaStream adapts the callback-driven api.Client.Chat to the pull-based
// llm.Stream. Chat runs in its own goroutine and hands events over an
// unbuffered channel, so it never gets ahead of the reader by more than one
// event.
type ollamaStream struct {
	events chan *llm.StreamEvent
	cancel context.CancelFunc
	event  *llm.StreamEvent
	err    error // written before events is closed
}

func newOllamaStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *ollamaStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &ollamaStream{
		events: make(chan *llm.StreamEvent),
		cancel: cancel,
	}
	go s.run(ctx, client, req)
	return s
}

func (s *ollamaStream) run(ctx context.Context, client *api.Client, req *api.ChatRequest) {
	defer close(s.events)

	send := func(ev *llm.StreamEvent) error {
		select {
		case s.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := send(&llm.StreamEvent{Type: llm.StreamEventTypeStart}); err != nil {
		s.err = err
		return
	}

	var calls int
	err := client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			if err := send(llm.TextEvent(resp.Message.Content)); err != nil {
				return err
			}
		}

		for _, toolCall := range resp.Message.ToolCalls {
			calls++
			tu := FromOllamaToolCall(toolCall, calls)
			args, err := json.Marshal(tu.Input)
			if err != nil {
				args = []byte("{}")
			}
			tu.Input = map[string]any{}
			if err := send(llm.ToolUseEvent(tu)); err != nil {
				return err
			}
			if err := send(llm.ToolInputEvent(string(args))); err != nil {
				return err
			}
		}

		if resp.Done {
			usage := &llm.Usage{
				InputTokens:  int64(resp.PromptEvalCount),
				OutputTokens: int64(resp.EvalCount),
			}
			if err := send(&llm.StreamEvent{Type: llm.StreamEventTypeMessageDelta, Usage: usage}); err != nil {
				return err
			}
			return send(llm.StopEvent(usage))
		}
		return nil
	})
	if err != nil {
		s.err = convertOllamaError(err)
	}
}

// Next advances to the next event in the stream.
func (s *ollamaStream) Next() bool {
	ev, ok := <-s.events
	if !ok {
		return false
	}
	s.event = ev
	return true
}

// Event returns the current event.
func (s *ollamaStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming. Only meaningful once
// Next has returned false.
func (s *ollamaStream) Err() error {
	return s.err
}

// Close cancels the request and waits for the reader goroutine to exit.
func (s *ollamaStream) Close() error {
	s.cancel()
	for range s.events {
	}
	return nil
}

var _ llm.Stream = (*ollamaStream)(nil)
