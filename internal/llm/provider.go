// Package llm defines the provider-agnostic interface for LLM interactions.
package llm

import "context"

// Provider is the abstraction over the hosted LLM backend.
type Provider interface {
	// Complete sends a rendered prompt to the LLM and returns its response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
}

// Request is a single prompt completion request.
// Kazi never holds multi-turn conversations: each invocation step is
// one system prompt plus one user prompt.
type Request struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float64
}

// Response is what the LLM returns.
type Response struct {
	Content    string
	Usage      Usage
	StopReason string // "end_turn", "max_tokens"
}

// Usage tracks token consumption for cost accounting. Zero values mean
// the provider reported no usage and callers should fall back to the
// length heuristic.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns the combined input and output token count.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Reported returns true when the provider supplied real usage counts.
func (u Usage) Reported() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0
}
