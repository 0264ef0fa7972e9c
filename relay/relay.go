// Package relay bridges a push-style token producer to a pull-style consumer.
//
// A producer runs in its own goroutine and calls emit for every token it
// generates. The consumer ranges over Tokens until the channel is closed and
// then calls Wait to learn whether the producer failed. The channel is
// closed in a deferred call, so iteration always terminates: after normal
// completion, after an error and after a panic in the producer.
package relay

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

// Emit forwards one token to the consumer. It returns a non-nil error once
// the consumer has gone away; producers should stop when that happens.
// Emit is not safe for concurrent use.
type Emit func(token string) error

// Producer generates tokens by calling emit and returns when it is done.
type Producer func(ctx context.Context, emit Emit) error

// Stream is a single-use token sequence fed by one producer goroutine.
type Stream struct {
	tokens chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error // written before done is closed
}

// Start launches producer in a new goroutine. buffer is the channel
// capacity; 0 makes every emit wait for the consumer.
func Start(ctx context.Context, buffer int, producer Producer, logger zerolog.Logger) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		tokens: make(chan string, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	logger = logger.With().Str("component", "relay").Logger()
	go s.run(ctx, producer, logger)
	return s
}

func (s *Stream) run(ctx context.Context, producer Producer, logger zerolog.Logger) {
	var count int
	defer s.cancel()
	defer close(s.done)
	defer close(s.tokens)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Token producer panicked")
			s.err = fmt.Errorf("token producer panicked: %v", r)
		}
	}()

	emit := func(token string) error {
		if token == "" {
			return nil
		}
		select {
		case s.tokens <- token:
			count++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.err = producer(ctx, emit)
	if s.err != nil {
		logger.Debug().Err(s.err).Int("tokens", count).Msg("Token producer finished with error")
		return
	}
	logger.Debug().Int("tokens", count).Msg("Token producer finished")
}

// Tokens returns the token channel. It is closed once the producer returns.
func (s *Stream) Tokens() <-chan string {
	return s.tokens
}

// Wait blocks until the producer has returned and reports its error. Wait
// does not drain Tokens; with an unbuffered relay the caller must keep
// reading or Close the stream first.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Close cancels the producer, discards any tokens still in flight and waits
// for the goroutine to exit. It returns the producer's error.
func (s *Stream) Close() error {
	s.cancel()
	for range s.tokens {
	}
	return s.Wait()
}

// Collect drains the stream and returns the concatenated tokens. If ctx is
// done first, the stream is closed and ctx's error returned.
func (s *Stream) Collect(ctx context.Context) (string, error) {
	var b strings.Builder
	for {
		select {
		case token, ok := <-s.tokens:
			if !ok {
				return b.String(), s.Wait()
			}
			b.WriteString(token)
		case <-ctx.Done():
			_ = s.Close()
			return b.String(), ctx.Err()
		}
	}
}
