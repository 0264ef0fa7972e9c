package openai

import (
	"errors"
	"io"

	"github.com/aschepis/backscratcher/summarizer/llm"
	openai "github.com/sashabaranov/go-openai"
)

// openaiStream pulls chunks from the SSE stream one Recv at a time and
// translates each into zero or more llm.StreamEvents.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	pending []*llm.StreamEvent
	event   *llm.StreamEvent
	tools   map[int]bool // tool call indexes already announced
	usage   *llm.Usage
	err     error
	done    bool
}

func newOpenAIStream(stream *openai.ChatCompletionStream) *openaiStream {
	return &openaiStream{
		stream:  stream,
		pending: []*llm.StreamEvent{{Type: llm.StreamEventTypeStart}},
		tools:   make(map[int]bool),
	}
}

// Next advances to the next event in the stream.
func (s *openaiStream) Next() bool {
	for len(s.pending) == 0 {
		if s.done || s.err != nil {
			return false
		}
		s.recv()
	}
	s.event, s.pending = s.pending[0], s.pending[1:]
	return true
}

// Event returns the current event.
func (s *openaiStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *openaiStream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *openaiStream) Close() error {
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

func (s *openaiStream) recv() {
	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		s.done = true
		s.pending = append(s.pending,
			&llm.StreamEvent{Type: llm.StreamEventTypeMessageDelta, Usage: s.usage},
			llm.StopEvent(s.usage),
		)
		return
	}
	if err != nil {
		s.err = convertOpenAIError(err)
		return
	}

	// the usage chunk arrives last, with no choices
	if response.Usage != nil {
		s.usage = &llm.Usage{
			InputTokens:  int64(response.Usage.PromptTokens),
			OutputTokens: int64(response.Usage.CompletionTokens),
		}
	}
	if len(response.Choices) == 0 {
		return
	}

	delta := response.Choices[0].Delta
	if delta.Content != "" {
		s.pending = append(s.pending, llm.TextEvent(delta.Content))
	}

	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		if !s.tools[idx] && tc.ID != "" {
			s.tools[idx] = true
			s.pending = append(s.pending, llm.ToolUseEvent(&llm.ToolUseBlock{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: map[string]any{},
			}))
		}
		if tc.Function.Arguments != "" {
			s.pending = append(s.pending, llm.ToolInputEvent(tc.Function.Arguments))
		}
	}
}

var _ llm.Stream = (*openaiStream)(nil)
