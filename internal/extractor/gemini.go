package extractor

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Gemini is the Google Gemini extraction backend.
type Gemini struct {
	llm llms.Model
}

// NewGemini builds a Gemini provider. An empty API key is refused outright:
// the pipeline must fail closed rather than silently fall back elsewhere.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	return &Gemini{llm: llm}, nil
}

// Name implements Provider.
func (*Gemini) Name() string { return "gemini" }

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(0.1),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	return resp, nil
}
