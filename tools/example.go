package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/summarizer/tools/schemas"
)

// RegisterExampleTools registers the illustrative example_tool, which echoes
// its input back as "Processed: <input>".
func (r *Registry) RegisterExampleTools() {
	for name, schema := range schemas.ExampleSchemas() {
		r.Register(name, schema, exampleTool)
	}
}

func exampleTool(_ context.Context, args json.RawMessage) (any, error) {
	input, err := exampleInput(args)
	if err != nil {
		return nil, err
	}
	return "Processed: " + input, nil
}

// exampleInput accepts {"input": "..."} as well as a bare JSON string, which
// some models send for single-argument tools.
func exampleInput(args json.RawMessage) (string, error) {
	var payload struct {
		Input *string `json:"input"`
	}
	if err := json.Unmarshal(args, &payload); err == nil {
		if payload.Input == nil {
			return "", fmt.Errorf("missing required argument: input")
		}
		return *payload.Input, nil
	}

	var raw string
	if err := json.Unmarshal(args, &raw); err != nil {
		return "", fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return raw, nil
}
