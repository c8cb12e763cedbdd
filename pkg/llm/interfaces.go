// Package llm provides the completion clients used for query synthesis and lesson grouping.
package llm

import (
	"context"
)

// GenerateResponseResult is a completion plus token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the narrow completion interface the engine depends on.
// The completion service is treated as an untrusted oracle: callers validate
// everything it returns.
type LLMClient interface {
	// GenerateResponse generates a chat completion for a single user prompt.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure the concrete clients implement LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ LLMClient = (*GuardedClient)(nil)
)
