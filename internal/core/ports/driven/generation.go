package driven

import "context"

// GenerateRequest is the provider-neutral generation input.
type GenerateRequest struct {
	// System frames the assistant's role. Providers without a system
	// slot prepend it to the prompt.
	System string

	// Prompt is the assembled context-plus-question text.
	Prompt string

	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxTokens caps the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// GenerationProvider produces answer text from a prompt. Providers are
// stacked into an ordered chain; the gateway advances past a failing
// provider instead of surfacing its error.
//
// Implementations may include:
//   - OpenAI-format chat completion APIs
//   - Anthropic messages API
//   - A deterministic canned-response terminal fallback
type GenerationProvider interface {
	// Name identifies the provider in logs and answers.
	Name() string

	// Generate blocks until the full response is assembled.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Close releases resources.
	Close() error
}

// StreamingProvider is implemented by providers that can emit
// incremental text deltas. The gateway falls back to synthesising a
// stream from Generate when a provider lacks this capability.
type StreamingProvider interface {
	GenerationProvider

	// GenerateStream emits raw provider deltas on the returned channel
	// until completion or context cancellation. The channel is closed
	// after the final delta.
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan string, <-chan error)
}
