package agent

import "github.com/aschepis/backscratcher/summarizer/llm"

// Stop reasons reported in Result.StopReason.
const (
	StopReasonFinalAnswer = "final_answer"
)

// Step is one intermediate step: a tool call and what it returned.
type Step struct {
	ToolUse     llm.ToolUseBlock
	Observation string
	IsError     bool
}

// Result is the outcome of Executor.Invoke.
type Result struct {
	Output     string
	Steps      []Step
	StopReason string
	Usage      *llm.Usage
}
