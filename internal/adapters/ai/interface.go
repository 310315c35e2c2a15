package ai

import "context"

// Client is the LLM inference collaborator. Implementations must tolerate
// JSON-only instructions and may return either well-formed JSON or JSON
// embedded in surrounding prose; callers extract the first balanced block.
type Client interface {
	// Generate produces a completion for the given prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is one inference call.
type GenerateRequest struct {
	// SystemPrompt carries the agent role hint
	SystemPrompt string

	// Prompt is the user-turn content
	Prompt string

	// MaxTokens caps the completion length; 0 uses the client default
	MaxTokens int

	// Temperature overrides the client default when > 0
	Temperature float64
}

// GenerateResponse carries the completion text plus telemetry.
type GenerateResponse struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
