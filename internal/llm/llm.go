// Package llm abstracts text generation over a local model server.
package llm

import "context"

// GenerateOptions tunes a single generation request. Zero values fall back
// to the client's defaults.
type GenerateOptions struct {
	// Model overrides the client's configured model.
	Model string

	// SystemPrompt sets system-level instructions for the model.
	SystemPrompt string

	// Temperature controls sampling randomness. Legal answers want it low.
	Temperature float32

	// MaxTokens caps the response length; zero means no cap.
	MaxTokens int
}

// StreamChunk is one fragment of a streamed response.
type StreamChunk struct {
	Token string
	Done  bool
	Error error
}

// LLM is a text generation client.
type LLM interface {
	// Generate blocks until the full response is available.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream returns a channel of response fragments. The channel
	// is closed after the final chunk; callers must check StreamChunk.Error.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
}
