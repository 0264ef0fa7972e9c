package llm

import (
	"github.com/samber/lo"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content []ContentBlock
}

// ContentBlock is one piece of a message: text, a tool use, or a tool result.
type ContentBlock struct {
	Type       ContentBlockType
	Text       string           // For text blocks
	ToolUse    *ToolUseBlock    // For tool use blocks
	ToolResult *ToolResultBlock // For tool result blocks
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ToolUseBlock represents a tool invocation request from the assistant.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultBlock represents the result of a tool invocation.
type ToolResultBlock struct {
	ID      string
	Content string
	IsError bool
}

// ToolSpec represents a tool definition that can be provided to an LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      ToolSchema
}

// ToolSchema represents the JSON schema for a tool's input parameters.
type ToolSchema struct {
	Type        string
	Properties  map[string]any
	Required    []string
	ExtraFields map[string]any
}

// Request represents a complete LLM API request.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	Tools       []ToolSpec
	MaxTokens   int64
	Temperature *float64 // nil leaves the provider default
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add accumulates other into u. A nil other is a no-op.
func (u *Usage) Add(other *Usage) {
	if u == nil || other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// StreamDelta represents a single delta in a streaming response.
type StreamDelta struct {
	Type      StreamDeltaType
	Text      string        // For text deltas
	ToolUse   *ToolUseBlock // For tool use start
	ToolInput string        // For tool input JSON deltas
}

// StreamDeltaType represents the type of streaming delta.
type StreamDeltaType string

const (
	StreamDeltaTypeText      StreamDeltaType = "text"
	StreamDeltaTypeToolUse   StreamDeltaType = "tool_use"
	StreamDeltaTypeToolInput StreamDeltaType = "tool_input"
)

// StreamEvent represents a complete streaming event.
type StreamEvent struct {
	Type  StreamEventType
	Delta *StreamDelta
	Usage *Usage
	Done  bool
}

// StreamEventType represents the type of streaming event.
type StreamEventType string

const (
	StreamEventTypeStart        StreamEventType = "start"
	StreamEventTypeContentBlock StreamEventType = "content_block"
	StreamEventTypeContentDelta StreamEventType = "content_delta"
	StreamEventTypeMessageDelta StreamEventType = "message_delta"
	StreamEventTypeStop         StreamEventType = "stop"
)

// TextEvent builds a content delta event carrying text.
func TextEvent(text string) *StreamEvent {
	return &StreamEvent{
		Type:  StreamEventTypeContentDelta,
		Delta: &StreamDelta{Type: StreamDeltaTypeText, Text: text},
	}
}

// ToolUseEvent builds the event announcing a new tool call.
func ToolUseEvent(tu *ToolUseBlock) *StreamEvent {
	return &StreamEvent{
		Type:  StreamEventTypeContentBlock,
		Delta: &StreamDelta{Type: StreamDeltaTypeToolUse, ToolUse: tu},
	}
}

// ToolInputEvent builds an event carrying a fragment of tool input JSON.
func ToolInputEvent(fragment string) *StreamEvent {
	return &StreamEvent{
		Type:  StreamEventTypeContentDelta,
		Delta: &StreamDelta{Type: StreamDeltaTypeToolInput, ToolInput: fragment},
	}
}

// StopEvent builds the terminal event of a stream.
func StopEvent(usage *Usage) *StreamEvent {
	return &StreamEvent{Type: StreamEventTypeStop, Usage: usage, Done: true}
}

// NewTextMessage creates a message with a single text block.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeText,
				Text: text,
			},
		},
	}
}

// NewToolUseMessage creates an assistant message with tool use blocks.
func NewToolUseMessage(toolUses []ToolUseBlock) Message {
	return Message{
		Role: RoleAssistant,
		Content: lo.Map(toolUses, func(tu ToolUseBlock, _ int) ContentBlock {
			return ContentBlock{Type: ContentBlockTypeToolUse, ToolUse: &tu}
		}),
	}
}

// NewToolResultMessage creates a user message with tool result blocks.
func NewToolResultMessage(toolResults []ToolResultBlock) Message {
	return Message{
		Role: RoleUser,
		Content: lo.Map(toolResults, func(tr ToolResultBlock, _ int) ContentBlock {
			return ContentBlock{Type: ContentBlockTypeToolResult, ToolResult: &tr}
		}),
	}
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 {
	return &v
}
