package extractor

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Groq is the Groq extraction backend, reached through its OpenAI-compatible
// API surface.
type Groq struct {
	llm llms.Model
}

// NewGroq builds a Groq provider. An empty API key is refused outright.
func NewGroq(apiKey, model, baseURL string) (*Groq, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: api key is required")
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("groq client init: %w", err)
	}
	return &Groq{llm: llm}, nil
}

// Name implements Provider.
func (*Groq) Name() string { return "groq" }

// Complete implements Provider.
func (g *Groq) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(0.1),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	return resp, nil
}
