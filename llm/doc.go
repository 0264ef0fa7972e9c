// Package llm is the provider-neutral layer between the summarizer service
// and the hosted model APIs.
//
// Providers (llm/openai, llm/anthropic, llm/ollama) implement Client and
// translate their SDK types into Message, ToolSpec and StreamEvent values.
// Everything above this package, the agent executor and the summarizer,
// only ever sees these types.
//
// # Streaming
//
// Stream is a pull iterator. A text response arrives as a sequence of
// StreamEventTypeContentDelta events carrying StreamDeltaTypeText deltas. A
// tool call arrives as a StreamEventTypeContentBlock event carrying the
// ToolUseBlock header followed by StreamDeltaTypeToolInput fragments of its
// JSON arguments. The stream ends with a StreamEventTypeStop event, or with
// Next returning false and Err reporting the failure.
//
//	stream, err := client.Stream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    ev := stream.Event()
//	    ...
//	}
//	return stream.Err()
//
// StreamText wraps that loop for callers that only care about text.
//
// # Errors
//
// Providers normalise failures to *Error so callers can ask IsRateLimitError
// or IsRetryableError without importing any SDK.
package llm
