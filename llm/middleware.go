package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs every provider call with its model, size and outcome.
type LoggingMiddleware struct {
	logger   zerolog.Logger
	provider string
}

// NewLoggingMiddleware creates a LoggingMiddleware for the named provider.
func NewLoggingMiddleware(logger zerolog.Logger, provider string) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:   logger.With().Str("component", "llmMiddleware").Str("provider", provider).Logger(),
		provider: provider,
	}
}

func (m *LoggingMiddleware) requestEvent(e *zerolog.Event, req *Request) *zerolog.Event {
	e = e.Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools))
	if req.Temperature != nil {
		e = e.Float64("temperature", *req.Temperature)
	}
	return e
}

// OnStreamError implements Middleware.
func (m *LoggingMiddleware) OnStreamError(ctx context.Context, req *Request, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	e := m.logger.Warn().Err(err).Str("model", req.Model)
	var llmErr *Error
	if errors.As(err, &llmErr) {
		e = e.Str("errorType", string(llmErr.Type)).Bool("retryable", llmErr.Retryable).Int("status", llmErr.StatusCode)
	}
	e.Msg("LLM stream failed")
	return err
}

// BeforeStream implements Middleware.
func (m *LoggingMiddleware) BeforeStream(ctx context.Context, req *Request) (*Request, error) {
	m.requestEvent(m.logger.Debug(), req).Time("started", time.Now()).Msg("LLM stream")
	return req, nil
}

// OnStreamEvent implements Middleware.
func (m *LoggingMiddleware) OnStreamEvent(ctx context.Context, req *Request, event *StreamEvent) (*StreamEvent, error) {
	if event.Type == StreamEventTypeStop {
		e := m.logger.Debug().Str("model", req.Model)
		if event.Usage != nil {
			e = e.Int64("inputTokens", event.Usage.InputTokens).Int64("outputTokens", event.Usage.OutputTokens)
		}
		e.Msg("LLM stream finished")
	}
	return event, nil
}

var _ Middleware = (*LoggingMiddleware)(nil)
