// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aschepis/backscratcher/summarizer/llm"
)

// Turn scripts the reply to one Stream call.
type Turn struct {
	Events    []*llm.StreamEvent
	Err       error // returned by the call itself
	StreamErr error // reported by the stream after Events are consumed
}

// Text scripts a reply that streams chunks and stops.
func Text(chunks ...string) Turn {
	events := make([]*llm.StreamEvent, 0, len(chunks)+1)
	for _, c := range chunks {
		events = append(events, llm.TextEvent(c))
	}
	events = append(events, llm.StopEvent(&llm.Usage{InputTokens: 1, OutputTokens: int64(len(chunks))}))
	return Turn{Events: events}
}

// ToolCall scripts a reply requesting a single tool call.
func ToolCall(id, name, argsJSON string) Turn {
	return Turn{Events: []*llm.StreamEvent{
		llm.ToolUseEvent(&llm.ToolUseBlock{ID: id, Name: name, Input: map[string]any{}}),
		llm.ToolInputEvent(argsJSON),
		llm.StopEvent(nil),
	}}
}

// Failure scripts a call that fails before streaming anything.
func Failure(err error) Turn {
	return Turn{Err: err}
}

// Client replays Turns in order and records every request it receives.
type Client struct {
	mu       sync.Mutex
	turns    []Turn
	requests []*llm.Request
}

// NewClient creates a Client that answers with turns in order.
func NewClient(turns ...Turn) *Client {
	return &Client{turns: turns}
}

func (c *Client) next(req *llm.Request) (Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	idx := len(c.requests) - 1
	if idx >= len(c.turns) {
		return Turn{}, fmt.Errorf("llmtest: no scripted turn for call %d", idx+1)
	}
	return c.turns[idx], nil
}

// Requests returns the requests received so far.
func (c *Client) Requests() []*llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.Request(nil), c.requests...)
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	turn, err := c.next(req)
	if err != nil {
		return nil, err
	}
	if turn.Err != nil {
		return nil, turn.Err
	}
	return NewStream(ctx, turn.Events, turn.StreamErr), nil
}

var _ llm.Client = (*Client)(nil)

// Stream replays a fixed list of events. It stops early when ctx is done.
type Stream struct {
	ctx     context.Context
	events  []*llm.StreamEvent
	current int
	err     error
	tailErr error
	closed  bool
}

// NewStream creates a Stream over events that reports tailErr once drained.
func NewStream(ctx context.Context, events []*llm.StreamEvent, tailErr error) *Stream {
	return &Stream{ctx: ctx, events: events, current: -1, tailErr: tailErr}
}

// Next implements llm.Stream.
func (s *Stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.current++
	if s.current >= len(s.events) {
		s.err = s.tailErr
		return false
	}
	return true
}

// Event implements llm.Stream.
func (s *Stream) Event() *llm.StreamEvent {
	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err implements llm.Stream.
func (s *Stream) Err() error {
	return s.err
}

// Close implements llm.Stream.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}

var _ llm.Stream = (*Stream)(nil)
