// Package extractor converts plain notification text into a structured job
// posting through one of several interchangeable LLM providers.
package extractor

import "context"

// Provider is the capability boundary to one LLM backend: prompt in,
// raw completion out. The schema contract lives entirely in the engine, so
// providers differ only in auth and quota limits.
type Provider interface {
	// Name identifies the provider for quota accounting and logging.
	Name() string
	// Complete sends the prompt and returns the provider's raw response.
	Complete(ctx context.Context, prompt string) (string, error)
}
