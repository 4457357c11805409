// Package llm provides the text-generation provider interface used by the
// LLM-backed chapter renderer, a provider registry and retry helpers.
package llm

import (
	"context"
)

// Provider is the interface that all LLM providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Format sends one chapter request and returns the generated Markdown.
	Format(ctx context.Context, req FormatRequest) (*FormatResult, error)

	// Validate checks if the provider is properly configured.
	Validate() error
}

// FormatRequest is one chapter to format.
type FormatRequest struct {
	Title   string        `json:"title"`
	Content string        `json:"content"` // chapter as an HTML fragment
	Options FormatOptions `json:"options"`
}

// FormatOptions contains options for LLM formatting.
type FormatOptions struct {
	Language    string  `json:"language,omitempty"`    // output language (e.g., "en", "ru")
	MaxTokens   int     `json:"max_tokens,omitempty"`  // maximum tokens for response
	Temperature float64 `json:"temperature,omitempty"` // creativity level (0.0 - 1.0)
	Prompt      string  `json:"prompt,omitempty"`      // custom system prompt
	Model       string  `json:"model,omitempty"`       // overrides the provider default
}

// FormatResult contains the result of LLM formatting.
type FormatResult struct {
	Markdown string     `json:"markdown"`
	Usage    TokenUsage `json:"usage"`
	Model    string     `json:"model"`
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalTokens += o.TotalTokens
}

// DefaultFormatOptions returns the default formatting options.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		Language:    "en",
		MaxTokens:   4096,
		Temperature: 0.3,
	}
}

// WithDefaults fills unset fields from DefaultFormatOptions.
func (o FormatOptions) WithDefaults() FormatOptions {
	d := DefaultFormatOptions()
	if o.Language == "" {
		o.Language = d.Language
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
	return o
}
