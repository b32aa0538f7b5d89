package repositories

import "context"

// LargeLanguageModel abstracts any hosted chat/LLM provider
type LargeLanguageModel interface {
	// Name identifies the provider in logs
	Name() string
	// Complete sends a single prompt and returns the model's raw text reply.
	// Implementations return domain.ErrConfigurationMissing before any network call
	// when their credential is absent.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single-turn model call
type CompletionRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
	// JSON asks the provider to constrain the reply to a JSON object
	JSON bool
}
