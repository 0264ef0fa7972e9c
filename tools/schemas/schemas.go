// Package schemas contains tool schema definitions for the agent. These
// schemas define the input parameters and descriptions of the tools the
// model can call. They are registered with the tools.Registry at startup.
package schemas

import (
	"maps"

	"github.com/aschepis/backscratcher/summarizer/llm"
)

// ToolSchema represents a tool's description and JSON schema.
type ToolSchema struct {
	Description string
	Schema      map[string]any
}

// All returns all tool schemas from all categories.
func All() map[string]ToolSchema {
	schemas := make(map[string]ToolSchema)
	maps.Copy(schemas, ExampleSchemas())
	return schemas
}

// ToSpec converts a JSON-schema style ToolSchema into an llm.ToolSpec.
func ToSpec(name string, schema ToolSchema) llm.ToolSpec {
	props, _ := schema.Schema["properties"].(map[string]any)

	var required []string
	switch req := schema.Schema["required"].(type) {
	case []string:
		required = req
	case []any:
		// JSON decoding produces []any
		required = make([]string, 0, len(req))
		for _, v := range req {
			if str, ok := v.(string); ok {
				required = append(required, str)
			}
		}
	}

	extra := map[string]any{}
	for k, v := range schema.Schema {
		if k != "type" && k != "properties" && k != "required" {
			extra[k] = v
		}
	}

	return llm.ToolSpec{
		Name:        name,
		Description: schema.Description,
		Schema: llm.ToolSchema{
			Type:        "object",
			Properties:  props,
			Required:    required,
			ExtraFields: extra,
		},
	}
}
