// Package openai implements llm.Provider on the OpenAI chat completions API
// and on OpenAI-compatible servers such as Ollama.
package openai

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/roboco-io/chaptermd/internal/llm"
)

const (
	// ProviderName is the registry name of the hosted OpenAI provider.
	ProviderName = "openai"
	// OllamaName is the registry name of the local Ollama provider.
	OllamaName = "ollama"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
	// DefaultOllamaModel is used for Ollama when no model is configured.
	DefaultOllamaModel = "llama3.1"
	// DefaultOllamaEndpoint is the OpenAI-compatible Ollama endpoint.
	DefaultOllamaEndpoint = "http://localhost:11434/v1"
)

// Config configures the provider.
type Config struct {
	Name     string // ProviderName or OllamaName
	APIKey   string
	Model    string
	Endpoint string
}

// Provider calls a chat completions endpoint.
type Provider struct {
	cfg    Config
	client *sdk.Client
}

// New creates an OpenAI provider.
func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = ProviderName
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := sdk.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		c.BaseURL = cfg.Endpoint
	}
	return &Provider{cfg: cfg, client: sdk.NewClientWithConfig(c)}
}

// NewOllama creates a provider for a local Ollama server.
func NewOllama(cfg Config) *Provider {
	cfg.Name = OllamaName
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.APIKey == "" {
		cfg.APIKey = OllamaName
	}
	return New(cfg)
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return p.cfg.Name }

// Validate implements llm.Provider.
func (p *Provider) Validate() error {
	if p.cfg.APIKey == "" {
		return errors.New("openai: API key is required (OPENAI_API_KEY)")
	}
	return nil
}

// Format implements llm.Provider.
func (p *Provider) Format(ctx context.Context, req llm.FormatRequest) (*llm.FormatResult, error) {
	opts := req.Options.WithDefaults()
	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	resp, err := p.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleSystem, Content: opts.Prompt},
			{Role: sdk.ChatMessageRoleUser, Content: llm.UserMessage(req)},
		},
	})
	if err != nil {
		return nil, llm.Classify(err, statusOf(err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}

	return &llm.FormatResult{
		Markdown: llm.StripCodeFence(strings.TrimSpace(resp.Choices[0].Message.Content)),
		Model:    resp.Model,
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func statusOf(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
