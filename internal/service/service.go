// Package service wires configuration, parser adapters, LLM providers and
// the pipeline into the conversion entry points shared by the CLI and the
// HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roboco-io/chaptermd/internal/config"
	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/llm"
	"github.com/roboco-io/chaptermd/internal/llm/anthropic"
	"github.com/roboco-io/chaptermd/internal/llm/gemini"
	"github.com/roboco-io/chaptermd/internal/llm/openai"
	"github.com/roboco-io/chaptermd/internal/parser"
	"github.com/roboco-io/chaptermd/internal/parser/upstage"
	"github.com/roboco-io/chaptermd/internal/pipeline"
	"github.com/roboco-io/chaptermd/internal/render"

	// Format adapters register themselves with the parser package.
	_ "github.com/roboco-io/chaptermd/internal/parser/docx"
	_ "github.com/roboco-io/chaptermd/internal/parser/pdf"
)

// Generator is recorded in the manifest and index of every run.
const Generator = "chaptermd"

// Service converts documents with one configuration.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *llm.Registry
}

// Report is the outcome of Convert.
type Report struct {
	*pipeline.Result
	Usage llm.TokenUsage
}

// New validates cfg and builds the provider registry.
func New(cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Service{cfg: cfg, log: log, registry: NewRegistry(cfg)}, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Registry returns the LLM providers known to the service.
func (s *Service) Registry() *llm.Registry {
	return s.registry
}

// providerEnv maps provider names to the variables read when the config
// leaves the API key empty.
var providerEnv = map[string]string{
	anthropic.ProviderName: "ANTHROPIC_API_KEY",
	openai.ProviderName:    "OPENAI_API_KEY",
	gemini.ProviderName:    "GOOGLE_API_KEY",
}

// EnvKey returns the API key variable of a provider.
func EnvKey(name string) string {
	return providerEnv[name]
}

// NewRegistry registers every supported provider with its configured
// model, key and endpoint.
func NewRegistry(cfg *config.Config) *llm.Registry {
	reg := llm.NewRegistry()
	settings := func(name string) config.Provider {
		p := cfg.Providers[name]
		p.APIKey = config.ExpandEnv(p.APIKey)
		if p.APIKey == "" && providerEnv[name] != "" {
			p.APIKey = config.GetEnvOrDefault(providerEnv[name], "")
		}
		return p
	}

	a := settings(anthropic.ProviderName)
	reg.Register(anthropic.New(anthropic.Config{APIKey: a.APIKey, Model: a.Model, Endpoint: a.Endpoint}))

	o := settings(openai.ProviderName)
	reg.Register(openai.New(openai.Config{APIKey: o.APIKey, Model: o.Model, Endpoint: o.Endpoint}))

	g := settings(gemini.ProviderName)
	reg.Register(gemini.New(gemini.Config{APIKey: g.APIKey, Model: g.Model}))

	l := settings(openai.OllamaName)
	reg.Register(openai.NewOllama(openai.Config{Model: l.Model, Endpoint: config.GetEnvOrDefault("OLLAMA_HOST", l.Endpoint)}))
	return reg
}

// DetectProvider guesses the provider serving a model name. Unknown names
// are assumed to be local Ollama models.
func DetectProvider(model string) string {
	m := strings.ToLower(model)
	switch {
	case m == "":
		return anthropic.ProviderName
	case strings.HasPrefix(m, "claude"):
		return anthropic.ProviderName
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return openai.ProviderName
	case strings.HasPrefix(m, "gemini"):
		return gemini.ProviderName
	default:
		return openai.OllamaName
	}
}

// ParserOptions returns the adapter options derived from the config.
func (s *Service) ParserOptions() parser.Options {
	return parser.Options{
		ExtractImages: s.cfg.Parser.ExtractImages,
		Locale:        s.cfg.Output.Locale,
	}
}

// Parse reads path with the configured engine. Failures are returned as
// *pipeline.StageError values at the input stage.
func (s *Service) Parse(ctx context.Context, path string) (*ir.Document, error) {
	start := time.Now()
	var (
		doc *ir.Document
		err error
	)
	switch s.cfg.Parser.Engine {
	case config.EngineUpstage:
		doc, err = s.parseRemote(ctx, path)
	default:
		doc, err = parser.ParseFile(path, s.ParserOptions())
	}
	if err != nil {
		return nil, pipeline.InputError(err)
	}
	if doc.Metadata.Locale == "" {
		doc.Metadata.Locale = s.cfg.Output.Locale
	}
	s.log.Debug("document parsed",
		"source", doc.Metadata.Source,
		"format", doc.Metadata.Format,
		"engine", s.cfg.Parser.Engine,
		"blocks", len(doc.Content),
		"resources", len(doc.Resources),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return doc, nil
}

func (s *Service) parseRemote(ctx context.Context, path string) (*ir.Document, error) {
	if _, err := parser.Detect(path); err != nil {
		return nil, err
	}
	up := s.cfg.Parser.Upstage
	p, err := upstage.New(upstage.Config{APIKey: config.ExpandEnv(up.APIKey), BaseURL: up.Endpoint, Model: up.Model})
	if err != nil {
		return nil, err
	}
	remote := p.Open(ctx, path)
	defer remote.Close()
	doc, err := remote.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse with %s: %w", p.Name(), err)
	}
	return doc, nil
}

// Renderer returns the LLM renderer when LLM formatting is enabled, nil
// otherwise. Dry runs never call a model.
func (s *Service) Renderer() (*render.LLM, error) {
	if !s.cfg.Render.UseLLM || s.cfg.Render.DryRun {
		return nil, nil
	}
	name := s.cfg.DefaultProvider
	provider, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	opts := llm.FormatOptions{
		Language:    s.cfg.Format.Language,
		MaxTokens:   s.cfg.Format.MaxTokens,
		Temperature: s.cfg.Format.Temperature,
	}
	if p, ok := s.cfg.GetProvider(name); ok && p.MaxTokens > 0 {
		opts.MaxTokens = p.MaxTokens
	}
	return render.NewLLM(provider, opts, s.log.With("provider", name)), nil
}

// Options returns the pipeline options derived from the config.
func (s *Service) Options() pipeline.Options {
	out := s.cfg.Output
	return pipeline.Options{
		SplitLevel:     out.SplitLevel,
		AssetsDir:      out.AssetsDir,
		ChaptersDir:    out.ChaptersDir,
		ChapterPattern: out.ChapterPattern,
		FrontMatter:    out.FrontMatter,
		Navigation:     out.Navigation,
		Validate:       out.RunValidators,
		StripTOC:       out.StripTOC,
		Locale:         out.Locale,
		DryRun:         s.cfg.Render.DryRun,
		Concurrency:    s.cfg.Render.Concurrency,
		Fallback:       pipeline.Fallback(s.cfg.Render.Fallback),
		Generator:      Generator,
	}
}

// Convert parses path and writes the chaptered output to root.
func (s *Service) Convert(ctx context.Context, path, root string) (*Report, error) {
	doc, err := s.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.ConvertDocument(ctx, doc, root)
}

// ConvertDocument runs an already parsed document through the pipeline.
func (s *Service) ConvertDocument(ctx context.Context, doc *ir.Document, root string) (*Report, error) {
	opts := s.Options()
	llmRenderer, err := s.Renderer()
	if err != nil {
		return nil, &pipeline.StageError{Stage: pipeline.StageRender, Code: pipeline.CodeInvalidOption, Err: err}
	}
	if llmRenderer != nil {
		opts.Renderer = llmRenderer
	}
	p, err := pipeline.New(opts, s.log)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(ctx, doc, root)
	if err != nil {
		return nil, err
	}
	report := &Report{Result: res}
	if llmRenderer != nil {
		report.Usage = llmRenderer.Usage()
	}
	return report, nil
}

// Plan parses path and reports the chapters a conversion would write.
func (s *Service) Plan(ctx context.Context, path string) (*ir.Document, []pipeline.PlannedChapter, []diag.Entry, error) {
	doc, err := s.Parse(ctx, path)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := pipeline.New(s.Options(), s.log)
	if err != nil {
		return nil, nil, nil, err
	}
	planned, diags, err := p.Plan(doc)
	if err != nil {
		return nil, nil, nil, err
	}
	return doc, planned, diags, nil
}
