package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roboco-io/chaptermd/internal/llm"
	"github.com/roboco-io/chaptermd/internal/split"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// LLM renders chapters through a text-generation provider. Its output is
// not deterministic.
type LLM struct {
	provider llm.Provider
	opts     llm.FormatOptions
	html     *HTML
	log      *slog.Logger

	// Attempts bounds calls per chapter; Wait computes the pause between them.
	Attempts int
	Wait     func(attempt int) time.Duration

	mu    sync.Mutex
	usage llm.TokenUsage
}

// NewLLM creates an LLM-backed renderer.
func NewLLM(p llm.Provider, opts llm.FormatOptions, log *slog.Logger) *LLM {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LLM{
		provider: p,
		opts:     opts.WithDefaults(),
		html:     NewHTML(),
		log:      log,
		Attempts: llm.MaxRetries,
		Wait:     llm.Backoff,
	}
}

// Name implements Renderer.
func (r *LLM) Name() string { return "llm:" + r.provider.Name() }

// Render implements Renderer.
func (r *LLM) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	fragment, err := r.html.Render(ctx, ch)
	if err != nil {
		return "", err
	}
	req := llm.FormatRequest{Title: ch.Title, Content: fragment, Options: r.opts}

	start := time.Now()
	res, err := llm.Retry(ctx, r.Attempts, r.Wait, func() (*llm.FormatResult, error) {
		return r.provider.Format(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("%s: chapter %d: %w", r.provider.Name(), ch.Ordinal, err)
	}
	text := strings.TrimSpace(res.Markdown)
	if text == "" {
		return "", fmt.Errorf("%s: chapter %d: %w", r.provider.Name(), ch.Ordinal, ErrEmptyResponse)
	}

	r.mu.Lock()
	r.usage.Add(res.Usage)
	r.mu.Unlock()
	r.log.Info("chapter formatted",
		"chapter", ch.Ordinal,
		"model", res.Model,
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return text + "\n", nil
}

// Usage returns the tokens consumed so far.
func (r *LLM) Usage() llm.TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}
