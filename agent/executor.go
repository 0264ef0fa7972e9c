package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/tools"
	"github.com/samber/lo"
)

// ErrEmptyResponse is returned when the model finishes without text or tool calls.
var ErrEmptyResponse = errors.New("received empty response from LLM")

// toolCallKey is used to track repeated identical failing tool calls.
type toolCallKey struct {
	toolName string
	input    string // JSON string of input
}

// turn is what one streamed model response produced.
type turn struct {
	text     string
	toolUses []*llm.ToolUseBlock
	usage    *llm.Usage
}

// Invoke runs the agent on input. steps seeds the scratchpad and is normally
// empty. The returned Result carries the final answer and every step taken.
func (e *Executor) Invoke(ctx context.Context, input string, steps []Step) (*Result, error) {
	result := &Result{
		Steps: append([]Step(nil), steps...),
		Usage: &llm.Usage{},
	}
	failures := make(map[toolCallKey]int)
	specs := e.tools.Specs(e.config.Tools...)

	for iteration := 1; iteration <= e.config.MaxIterations; iteration++ {
		req := &llm.Request{
			Model:       e.config.Model,
			System:      e.config.SystemPrompt,
			Messages:    buildMessages(input, result.Steps),
			Tools:       specs,
			MaxTokens:   e.config.MaxTokens,
			Temperature: e.config.Temperature,
		}

		e.logger.Debug().
			Int("iteration", iteration).
			Int("messages", len(req.Messages)).
			Int("tools", len(req.Tools)).
			Msg("Calling LLM stream")

		t, err := e.streamTurn(ctx, req)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(t.usage)

		if len(t.toolUses) == 0 {
			text := strings.TrimSpace(t.text)
			if text == "" {
				return nil, ErrEmptyResponse
			}
			result.Output = text
			result.StopReason = StopReasonFinalAnswer
			return result, nil
		}

		for _, tu := range t.toolUses {
			step, err := e.executeSingleTool(ctx, tu, failures)
			if err != nil {
				return nil, err
			}
			result.Steps = append(result.Steps, step)
		}
	}

	return nil, fmt.Errorf("tool loop exceeded maximum iterations (%d). Possible infinite loop detected", e.config.MaxIterations)
}

// streamTurn streams one model response, forwarding text to the callback and
// assembling tool calls from their input fragments.
func (e *Executor) streamTurn(ctx context.Context, req *llm.Request) (*turn, error) {
	stream, err := e.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	var toolUses []*llm.ToolUseBlock
	inputs := make(map[string]*strings.Builder) // accumulated JSON input per tool id
	var current *llm.ToolUseBlock
	t := &turn{}

loop:
	for stream.Next() {
		event := stream.Event()
		if event == nil {
			continue
		}

		switch event.Type {
		case llm.StreamEventTypeContentDelta, llm.StreamEventTypeContentBlock:
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case llm.StreamDeltaTypeText:
				if event.Delta.Text == "" {
					continue
				}
				text.WriteString(event.Delta.Text)
				if e.callback != nil {
					if err := e.callback(event.Delta.Text); err != nil {
						return nil, fmt.Errorf("stream callback error: %w", err)
					}
				}
			case llm.StreamDeltaTypeToolUse:
				tu := event.Delta.ToolUse
				if tu == nil {
					continue
				}
				if _, seen := inputs[tu.ID]; !seen {
					toolCopy := *tu
					toolCopy.Input = make(map[string]any)
					toolUses = append(toolUses, &toolCopy)
					inputs[tu.ID] = &strings.Builder{}
				}
				current = tu
			case llm.StreamDeltaTypeToolInput:
				if current != nil {
					inputs[current.ID].WriteString(event.Delta.ToolInput)
				}
			}

		case llm.StreamEventTypeStop:
			t.usage = event.Usage
			break loop
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	for _, tu := range toolUses {
		raw := inputs[tu.ID].String()
		if raw == "" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			e.logger.Warn().Err(err).Str("toolName", tu.Name).Str("toolID", tu.ID).Msg("failed to decode tool input")
			continue
		}
		tu.Input = input
	}

	t.text = text.String()
	t.toolUses = toolUses
	return t, nil
}

// executeSingleTool runs one tool call. Tool errors are reported back to the
// model as an observation; only a call that keeps failing with the same
// input ends the loop.
func (e *Executor) executeSingleTool(ctx context.Context, tu *llm.ToolUseBlock, failures map[toolCallKey]int) (Step, error) {
	raw, err := json.Marshal(tu.Input)
	if err != nil {
		e.logger.Warn().Err(err).Str("toolName", tu.Name).Str("toolID", tu.ID).Msg("failed to marshal tool input")
		raw = []byte("{}")
	}

	key := toolCallKey{toolName: tu.Name, input: string(raw)}
	step := Step{ToolUse: *tu}

	out, callErr := e.tools.Handle(ctx, tu.Name, raw)
	if callErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return step, ctxErr
		}
		failures[key]++
		if failures[key] >= maxRepeatedFailures {
			e.logger.Warn().
				Str("toolName", tu.Name).
				Str("input", string(raw)).
				Int("failures", failures[key]).
				Msg("Tool has failed too many times. Breaking loop to prevent infinite retry")
			return step, fmt.Errorf("tool '%s' repeatedly failed with same input after %d attempts: %w",
				tu.Name, maxRepeatedFailures, callErr)
		}
		step.Observation = callErr.Error()
		step.IsError = true
		return step, nil
	}

	delete(failures, key)
	step.Observation = tools.ResultString(out)
	return step, nil
}

// buildMessages renders the human input followed by the scratchpad.
func buildMessages(input string, steps []Step) []llm.Message {
	messages := make([]llm.Message, 0, 1+2*len(steps))
	messages = append(messages, llm.NewTextMessage(llm.RoleUser, input))
	return append(messages, scratchpad(steps)...)
}

// scratchpad replays each step as a tool-use message and its result.
func scratchpad(steps []Step) []llm.Message {
	return lo.FlatMap(steps, func(step Step, _ int) []llm.Message {
		return []llm.Message{
			llm.NewToolUseMessage([]llm.ToolUseBlock{step.ToolUse}),
			llm.NewToolResultMessage([]llm.ToolResultBlock{{
				ID:      step.ToolUse.ID,
				Content: step.Observation,
				IsError: step.IsError,
			}}),
		}
	})
}
