// Package anthropic implements llm.Provider on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/roboco-io/chaptermd/internal/llm"
)

// ProviderName is the registry name of this provider.
const ProviderName = "anthropic"

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Config configures the provider.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
}

// Provider calls the Anthropic Messages API.
type Provider struct {
	cfg    Config
	client sdk.Client
}

// New creates a provider. Validate reports a missing API key.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &Provider{cfg: cfg, client: sdk.NewClient(opts...)}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return ProviderName }

// Validate implements llm.Provider.
func (p *Provider) Validate() error {
	if p.cfg.APIKey == "" {
		return errors.New("anthropic: API key is required (ANTHROPIC_API_KEY)")
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

	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: sdk.Float(opts.Temperature),
		System:      []sdk.TextBlockParam{{Text: opts.Prompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(llm.UserMessage(req))),
		},
	})
	if err != nil {
		status := 0
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, llm.Classify(err, status)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &llm.FormatResult{
		Markdown: llm.StripCodeFence(sb.String()),
		Model:    string(msg.Model),
		Usage:    llm.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}
