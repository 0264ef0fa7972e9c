// Package summarize streams length- and style-constrained summaries.
package summarize

import (
	"context"
	"fmt"
	"math"

	"github.com/aschepis/backscratcher/summarizer/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Parameter defaults and bounds.
const (
	DefaultPercent     = 30
	DefaultTemperature = 0.3
	MinPercent         = 1
	MaxPercent         = 100
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
)

// SystemPrompt is sent with every summary request.
const SystemPrompt = "You are a helpful assistant that summarizes text."

const (
	bulletsStyle   = "Return the summary as a bulleted list where each bullet is a short sentence."
	paragraphStyle = "Return the summary as one concise paragraph."

	promptTemplate = "You are an expert text-summarizer.\n" +
		"Summarize the following text to ≈%d%% of its original length. %s\n" +
		"\n" +
		"Text:\n" +
		"%s"
)

// Params describe one summary request.
type Params struct {
	Content     string
	Percent     int
	Bullets     bool
	Temperature float64
}

// DefaultParams returns Params for content with every option at its default.
func DefaultParams(content string) Params {
	return Params{
		Content:     content,
		Percent:     DefaultPercent,
		Temperature: DefaultTemperature,
	}
}

// Normalize clamps Percent and Temperature into range. A NaN temperature is
// replaced by the default.
func (p Params) Normalize() Params {
	p.Percent = lo.Clamp(p.Percent, MinPercent, MaxPercent)
	if math.IsNaN(p.Temperature) {
		p.Temperature = DefaultTemperature
	}
	p.Temperature = lo.Clamp(p.Temperature, MinTemperature, MaxTemperature)
	return p
}

// Style returns the output-format instruction.
func (p Params) Style() string {
	if p.Bullets {
		return bulletsStyle
	}
	return paragraphStyle
}

// Prompt renders the user prompt for already normalized params.
func (p Params) Prompt() string {
	return fmt.Sprintf(promptTemplate, p.Percent, p.Style(), p.Content)
}

// Config holds summarizer settings.
type Config struct {
	Model     string // empty uses the client's default
	MaxTokens int64
}

// Summarizer issues summary requests against an llm.Client.
type Summarizer struct {
	client llm.Client
	config Config
	logger zerolog.Logger
}

// New creates a Summarizer.
func New(client llm.Client, cfg Config, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "summarizer").Logger(),
	}
}

// Request builds the llm.Request for params after normalizing them.
func (s *Summarizer) Request(params Params) *llm.Request {
	params = params.Normalize()
	return &llm.Request{
		Model:       s.config.Model,
		System:      SystemPrompt,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, params.Prompt())},
		MaxTokens:   s.config.MaxTokens,
		Temperature: llm.Float64(params.Temperature),
	}
}

// Stream generates a summary and hands each text delta to emit. Errors from
// the provider or from emit are returned.
func (s *Summarizer) Stream(ctx context.Context, params Params, emit func(string) error) error {
	normalized := params.Normalize()
	s.logger.Debug().
		Int("percent", normalized.Percent).
		Bool("bullets", normalized.Bullets).
		Float64("temperature", normalized.Temperature).
		Int("content_chars", len(normalized.Content)).
		Msg("Streaming summary")

	usage, err := llm.StreamText(ctx, s.client, s.Request(normalized), emit)
	if err != nil {
		return fmt.Errorf("failed to stream summary: %w", err)
	}
	if usage != nil {
		s.logger.Debug().
			Int64("input_tokens", usage.InputTokens).
			Int64("output_tokens", usage.OutputTokens).
			Msg("Summary finished")
	}
	return nil
}
