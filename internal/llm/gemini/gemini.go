// Package gemini implements llm.Provider on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"google.golang.org/genai"

	"github.com/roboco-io/chaptermd/internal/llm"
)

// ProviderName is the registry name of this provider.
const ProviderName = "gemini"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config configures the provider.
type Config struct {
	APIKey string
	Model  string
}

// Provider calls the Gemini API. The client is created on first use
// because construction needs a context.
type Provider struct {
	cfg Config

	once   sync.Once
	client *genai.Client
	err    error
}

// New creates a provider.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{cfg: cfg}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return ProviderName }

// Validate implements llm.Provider.
func (p *Provider) Validate() error {
	if p.cfg.APIKey == "" {
		return errors.New("gemini: API key is required (GOOGLE_API_KEY)")
	}
	return nil
}

func (p *Provider) clientFor(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.err
}

// Format implements llm.Provider.
func (p *Provider) Format(ctx context.Context, req llm.FormatRequest) (*llm.FormatResult, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	opts := req.Options.WithDefaults()
	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	temp := float32(opts.Temperature)
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(llm.UserMessage(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(opts.Prompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   int32(opts.MaxTokens),
	})
	if err != nil {
		return nil, llm.Classify(err, statusOf(err))
	}

	result := &llm.FormatResult{
		Markdown: llm.StripCodeFence(resp.Text()),
		Model:    model,
	}
	if u := resp.UsageMetadata; u != nil {
		result.Usage = llm.TokenUsage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return result, nil
}

// apiStatusRe extracts the HTTP status from genai API error messages
// ("Error 503, Message: ...").
var apiStatusRe = regexp.MustCompile(`Error (\d{3})\b`)

func statusOf(err error) int {
	if m := apiStatusRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
