package schemas

// ExampleToolName is the name of the illustrative tool offered to the agent.
const ExampleToolName = "example_tool"

// ExampleSchemas returns schemas for the illustrative tools.
func ExampleSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		ExampleToolName: {
			Description: "An example tool that processes input.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "Text to process",
					},
				},
				"required": []string{"input"},
			},
		},
	}
}
