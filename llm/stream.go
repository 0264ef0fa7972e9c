package llm

import (
	"context"
	"fmt"
)

// TextHandler receives each text delta of a stream in order.
type TextHandler func(text string) error

// StreamText issues req as a streaming call and hands every non-empty text
// delta to fn. Tool call events are ignored. It returns the last usage the
// provider reported, which may be nil.
func StreamText(ctx context.Context, client Client, req *Request, fn TextHandler) (*Usage, error) {
	stream, err := client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	var usage *Usage
	for stream.Next() {
		ev := stream.Event()
		if ev == nil {
			continue
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		if ev.Type == StreamEventTypeStop {
			break
		}
		if ev.Delta == nil || ev.Delta.Type != StreamDeltaTypeText || ev.Delta.Text == "" {
			continue
		}
		if err := fn(ev.Delta.Text); err != nil {
			return usage, fmt.Errorf("stream callback error: %w", err)
		}
	}

	if err := stream.Err(); err != nil {
		return usage, err
	}
	return usage, nil
}
