package anthropic

import (
	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/rs/zerolog"
)

// anthropicStream translates Messages API server-sent events into
// llm.StreamEvents on demand; nothing is read ahead of the caller.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	pending []*llm.StreamEvent
	event   *llm.StreamEvent
	usage   llm.Usage
	err     error
	done    bool
	logger  zerolog.Logger
}

func newAnthropicStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], logger zerolog.Logger) *anthropicStream {
	return &anthropicStream{
		stream:  stream,
		pending: []*llm.StreamEvent{{Type: llm.StreamEventTypeStart}},
		logger:  logger,
	}
}

// Next advances to the next event in the stream.
func (s *anthropicStream) Next() bool {
	for len(s.pending) == 0 {
		if s.done || s.err != nil {
			return false
		}
		s.pull()
	}
	s.event, s.pending = s.pending[0], s.pending[1:]
	return true
}

// Event returns the current event.
func (s *anthropicStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *anthropicStream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *anthropicStream) Close() error {
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

func (s *anthropicStream) pull() {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			s.err = convertAnthropicError(err)
			return
		}
		// ended without message_stop
		s.finish()
		return
	}

	switch evt := s.stream.Current().AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.usage.InputTokens = evt.Message.Usage.InputTokens
		s.usage.CacheCreationInputTokens = evt.Message.Usage.CacheCreationInputTokens
		s.usage.CacheReadInputTokens = evt.Message.Usage.CacheReadInputTokens

	case anthropic.ContentBlockStartEvent:
		if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			s.pending = append(s.pending, llm.ToolUseEvent(&llm.ToolUseBlock{
				ID:    block.ID,
				Name:  block.Name,
				Input: map[string]any{},
			}))
		}

	case anthropic.ContentBlockDeltaEvent:
		switch d := evt.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text != "" {
				s.pending = append(s.pending, llm.TextEvent(d.Text))
			}
		case anthropic.InputJSONDelta:
			if d.PartialJSON != "" {
				s.pending = append(s.pending, llm.ToolInputEvent(d.PartialJSON))
			}
		}

	case anthropic.MessageDeltaEvent:
		s.usage.OutputTokens = evt.Usage.OutputTokens
		if evt.Usage.InputTokens > 0 {
			s.usage.InputTokens = evt.Usage.InputTokens
		}

	case anthropic.MessageStopEvent:
		s.finish()
	}
}

func (s *anthropicStream) finish() {
	s.done = true
	usage := s.usage
	if usage.CacheCreationInputTokens > 0 || usage.CacheReadInputTokens > 0 {
		s.logger.Debug().
			Int64("input_tokens", usage.InputTokens).
			Int64("cache_creation_tokens", usage.CacheCreationInputTokens).
			Int64("cache_read_tokens", usage.CacheReadInputTokens).
			Msg("Prompt cache stats (stream)")
	}
	s.pending = append(s.pending,
		&llm.StreamEvent{Type: llm.StreamEventTypeMessageDelta, Usage: &usage},
		llm.StopEvent(&usage),
	)
}

var _ llm.Stream = (*anthropicStream)(nil)
