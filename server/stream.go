package server

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// StreamContentType is sent with every streamed response.
const StreamContentType = "text/event-stream; charset=utf-8"

// writeStream copies tokens from stream to w, flushing after each one.
// Headers are held back until the first token so that a failure before any
// output still becomes a 500 carrying failureDetail.
func writeStream(w http.ResponseWriter, r *http.Request, stream *relay.Stream, failureDetail string) {
	defer func() { _ = stream.Close() }()

	logger := hlog.FromRequest(r)
	rc := http.NewResponseController(w)
	started := false

	for token := range stream.Tokens() {
		if !started {
			w.Header().Set("Content-Type", StreamContentType)
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, token); err != nil {
			logger.Debug().Err(err).Msg("Client went away during stream")
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logger.Debug().Err(err).Msg("Failed to flush stream")
			return
		}
	}

	err := stream.Wait()
	switch {
	case err != nil && !started:
		providerFailure(w, logger.Error(), err, false).Msg("Stream failed before producing output")
		writeDetail(w, http.StatusInternalServerError, failureDetail)
	case err != nil:
		providerFailure(w, logger.Error(), err, true).Msg("Stream failed after output was sent")
	case !started:
		w.Header().Set("Content-Type", StreamContentType)
		w.WriteHeader(http.StatusOK)
	}
}

// providerFailure adds the provider error classification to e. While headers
// are unsent, a rate limit with a known delay also sets Retry-After.
func providerFailure(w http.ResponseWriter, e *zerolog.Event, err error, headersSent bool) *zerolog.Event {
	e = e.Err(err).Bool("retryable", llm.IsRetryableError(err))
	switch {
	case llm.IsRateLimitError(err):
		e = e.Str("error_type", string(llm.ErrorTypeRateLimit))
		if d := llm.ExtractRetryAfter(err); d != nil {
			e = e.Dur("retry_after", *d)
			if !headersSent {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
		}
	case llm.IsRequestTooLargeError(err):
		e = e.Str("error_type", string(llm.ErrorTypeRequestTooLarge))
	}
	return e
}
