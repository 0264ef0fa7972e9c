package llm

import (
	"context"
)

// Client provides a provider-neutral interface for making LLM API calls.
type Client interface {
	// Stream sends a request and returns a stream of events.
	// The caller reads from the Stream until Next returns false and must Close it.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream represents a streaming response from an LLM.
type Stream interface {
	// Next advances to the next event in the stream.
	// Returns false when the stream is complete or an error occurs.
	Next() bool

	// Event returns the current event.
	// Should only be called after Next() returns true.
	Event() *StreamEvent

	// Err returns any error that occurred during streaming.
	Err() error

	// Close closes the stream and releases resources.
	Close() error
}

// Middleware provides hooks for decorating streaming calls.
type Middleware interface {
	// BeforeStream can modify the request or return an error to abort it.
	BeforeStream(ctx context.Context, req *Request) (*Request, error)

	// OnStreamEvent can modify the event or return an error to abort the stream.
	OnStreamEvent(ctx context.Context, req *Request, event *StreamEvent) (*StreamEvent, error)

	// OnStreamError can return a modified error or nil to swallow it.
	OnStreamError(ctx context.Context, req *Request, err error) error
}

// WrapWithMiddleware wraps a Client with middleware and returns a new Client.
// Hooks run in the order the middleware is given.
func WrapWithMiddleware(client Client, middleware ...Middleware) Client {
	if len(middleware) == 0 {
		return client
	}
	return &clientWithMiddleware{
		client:     client,
		middleware: middleware,
	}
}

type clientWithMiddleware struct {
	client     Client
	middleware []Middleware
}

func (c *clientWithMiddleware) Stream(ctx context.Context, req *Request) (Stream, error) {
	for _, mw := range c.middleware {
		var err error
		req, err = mw.BeforeStream(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	stream, err := c.client.Stream(ctx, req)
	if err != nil {
		return nil, c.streamError(ctx, req, err)
	}

	return &streamWithMiddleware{
		parent: c,
		stream: stream,
		req:    req,
		ctx:    ctx,
	}, nil
}

func (c *clientWithMiddleware) streamError(ctx context.Context, req *Request, err error) error {
	for _, mw := range c.middleware {
		err = mw.OnStreamError(ctx, req, err)
		if err == nil {
			break
		}
	}
	return err
}

type streamWithMiddleware struct {
	parent *clientWithMiddleware
	stream Stream
	req    *Request
	ctx    context.Context
	event  *StreamEvent
	err    error
}

func (s *streamWithMiddleware) Next() bool {
	if s.err != nil || !s.stream.Next() {
		return false
	}

	event := s.stream.Event()
	if event == nil {
		return false
	}

	for _, mw := range s.parent.middleware {
		var err error
		event, err = mw.OnStreamEvent(s.ctx, s.req, event)
		if err != nil {
			s.err = err
			return false
		}
		if event == nil {
			return false
		}
	}

	s.event = event
	return true
}

func (s *streamWithMiddleware) Event() *StreamEvent {
	return s.event
}

func (s *streamWithMiddleware) Err() error {
	err := s.err
	if err == nil {
		err = s.stream.Err()
	}
	if err != nil {
		err = s.parent.streamError(s.ctx, s.req, err)
	}
	return err
}

func (s *streamWithMiddleware) Close() error {
	return s.stream.Close()
}

var _ Stream = (*streamWithMiddleware)(nil)

var _ Client = (*clientWithMiddleware)(nil)
