package ollama

import (
	"fmt"
	"maps"
	"strings"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/ollama/ollama/api"
)

// ToOllamaMessages converts llm.Messages to Ollama chat messages.
func ToOllamaMessages(msgs []llm.Message) []api.Message {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToOllamaMessage(msg)...)
	}
	return result
}

// ToOllamaMessage converts a single llm.Message. Tool results are split into
// separate "tool" role messages.
func ToOllamaMessage(msg llm.Message) []api.Message {
	var text []string
	var toolCalls []api.ToolCall
	var toolMsgs []api.Message

	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			text = append(text, block.Text)
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse == nil {
				continue
			}
			args := make(api.ToolCallFunctionArguments)
			maps.Copy(args, block.ToolUse.Input)
			toolCalls = append(toolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      block.ToolUse.Name,
					Arguments: args,
				},
			})
		case llm.ContentBlockTypeToolResult:
			if block.ToolResult != nil {
				toolMsgs = append(toolMsgs, api.Message{
					Role:    "tool",
					Content: block.ToolResult.Content,
				})
			}
		}
	}

	out := make([]api.Message, 0, 1+len(toolMsgs))
	if len(text) > 0 || len(toolCalls) > 0 {
		out = append(out, api.Message{
			Role:      string(msg.Role),
			Content:   strings.Join(text, "\n"),
			ToolCalls: toolCalls,
		})
	}
	return append(out, toolMsgs...)
}

// ToOllamaTools converts llm.ToolSpecs to Ollama function tools.
func ToOllamaTools(specs []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, 0, len(specs))
	for i := range specs {
		result = append(result, ToOllamaTool(&specs[i]))
	}
	return result
}

// ToOllamaTool converts a single llm.ToolSpec to Ollama Tool format.
// Only the type and description of each property survive the conversion.
func ToOllamaTool(spec *llm.ToolSpec) api.Tool {
	properties := make(map[string]api.ToolProperty, len(spec.Schema.Properties))
	for name, v := range spec.Schema.Properties {
		prop := api.ToolProperty{Type: []string{"string"}}
		if propMap, ok := v.(map[string]any); ok {
			if propType, ok := propMap["type"].(string); ok {
				prop.Type = []string{propType}
			}
			if desc, ok := propMap["description"].(string); ok {
				prop.Description = desc
			}
		}
		properties[name] = prop
	}

	schemaType := spec.Schema.Type
	if schemaType == "" {
		schemaType = "object"
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: api.ToolFunctionParameters{
				Type:       schemaType,
				Properties: properties,
				Required:   spec.Schema.Required,
			},
		},
	}
}

// FromOllamaToolCall converts an Ollama tool call to an llm.ToolUseBlock.
// Ollama does not assign call ids, so seq numbers calls within one response.
func FromOllamaToolCall(toolCall api.ToolCall, seq int) *llm.ToolUseBlock {
	input := make(map[string]any, len(toolCall.Function.Arguments))
	maps.Copy(input, toolCall.Function.Arguments)
	return &llm.ToolUseBlock{
		ID:    fmt.Sprintf("call_%s_%d", toolCall.Function.Name, seq),
		Name:  toolCall.Function.Name,
		Input: input,
	}
}
