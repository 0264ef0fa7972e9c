package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/aschepis/backscratcher/summarizer/tools/schemas"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// maxLoggedResult bounds the tool result written to the log.
const maxLoggedResult = 500

// ToolHandler handles a tool call.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps tool names to handlers and schemas.
type Registry struct {
	handlers map[string]ToolHandler
	schemas  map[string]schemas.ToolSchema
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "tool_registry").Logger()
	return &Registry{
		handlers: make(map[string]ToolHandler),
		schemas:  make(map[string]schemas.ToolSchema),
		logger:   logger,
	}
}

// Register registers a handler and its schema for a tool name.
func (r *Registry) Register(name string, schema schemas.ToolSchema, h ToolHandler) {
	r.logger.Debug().Str("name", name).Msg("Registering tool handler")
	r.handlers[name] = h
	r.schemas[name] = schema
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.handlers)
	slices.Sort(names)
	return names
}

// Specs returns tool specs for the tools matching any of patterns. Patterns
// are regular expressions; no patterns selects every tool.
func (r *Registry) Specs(patterns ...string) []llm.ToolSpec {
	names := r.Names()
	if len(patterns) > 0 {
		names = lo.Filter(names, func(name string, _ int) bool {
			return lo.SomeBy(patterns, func(pattern string) bool {
				re, err := regexp.Compile("^(?:" + pattern + ")$")
				if err != nil {
					r.logger.Warn().Str("pattern", pattern).Err(err).Msg("Invalid tool pattern")
					return false
				}
				return re.MatchString(name)
			})
		})
	}

	return lo.Map(names, func(name string, _ int) llm.ToolSpec {
		return schemas.ToSpec(name, r.schemas[name])
	})
}

// Handle dispatches a tool call.
func (r *Registry) Handle(ctx context.Context, toolName string, argsStr []byte) (any, error) {
	h, ok := r.handlers[toolName]
	if !ok {
		r.logger.Error().Str("tool", toolName).Msg("Unknown tool requested")
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	if len(argsStr) == 0 {
		argsStr = []byte("{}")
	}
	r.logger.Debug().Str("tool", toolName).RawJSON("args", compactJSON(argsStr)).Msg("Executing tool")

	result, err := h(ctx, json.RawMessage(argsStr))
	if err != nil {
		r.logger.Warn().Str("tool", toolName).Err(err).Msg("Tool returned error")
		return nil, err
	}

	r.logger.Info().Str("tool", toolName).Str("result", truncate(ResultString(result), maxLoggedResult)).Msg("Tool returned result")
	return result, nil
}

// ResultString renders a tool result as the text handed back to the model.
// Strings pass through, everything else is JSON encoded.
func ResultString(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

func compactJSON(raw []byte) []byte {
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	return raw
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... (truncated)"
}
