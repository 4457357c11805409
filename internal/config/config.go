// Package config manages application configuration.
package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/roboco-io/chaptermd/internal/output"
)

// Parser engines.
const (
	EngineNative  = "native"
	EngineUpstage = "upstage"
)

// Render fallback policies.
const (
	FallbackDeterministic = "deterministic"
	FallbackDryRun        = "dryrun"
	FallbackAbort         = "abort"
)

// Config represents the application configuration.
type Config struct {
	DefaultProvider string              `yaml:"default_provider"`
	Providers       map[string]Provider `yaml:"providers"`
	Format          FormatConfig        `yaml:"format"`
	Output          OutputConfig        `yaml:"output"`
	Render          RenderConfig        `yaml:"render"`
	Parser          ParserConfig        `yaml:"parser"`
	Server          ServerConfig        `yaml:"server"`
}

// Provider represents an LLM provider configuration.
type Provider struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Endpoint  string `yaml:"endpoint,omitempty"` // for Ollama or custom endpoints
}

// FormatConfig contains formatting options.
type FormatConfig struct {
	Temperature float64 `yaml:"temperature"`
	Language    string  `yaml:"language"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// OutputConfig controls the layout of the output directory.
type OutputConfig struct {
	SplitLevel     int    `yaml:"split_level"`
	AssetsDir      string `yaml:"assets_dir"`
	ChaptersDir    string `yaml:"chapters_dir"`
	ChapterPattern string `yaml:"chapter_pattern"`
	FrontMatter    bool   `yaml:"frontmatter"`
	Navigation     bool   `yaml:"nav"`
	RunValidators  bool   `yaml:"validate"`
	StripTOC       bool   `yaml:"strip_toc"`
	Locale         string `yaml:"locale"`
}

// RenderConfig selects the chapter renderer.
type RenderConfig struct {
	DryRun      bool   `yaml:"dry_run"`
	UseLLM      bool   `yaml:"use_llm"`
	Concurrency int    `yaml:"concurrency"`
	Fallback    string `yaml:"fallback"`
}

// ParserConfig selects how input documents are read.
type ParserConfig struct {
	Engine        string   `yaml:"engine"`
	ExtractImages bool     `yaml:"extract_images"`
	Upstage       Provider `yaml:"upstage"`
}

// ServerConfig configures the HTTP conversion service.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "anthropic",
		Providers: map[string]Provider{
			"openai": {
				APIKey:    "${OPENAI_API_KEY}",
				Model:     "gpt-4o-mini",
				MaxTokens: 4096,
			},
			"anthropic": {
				APIKey:    "${ANTHROPIC_API_KEY}",
				Model:     "claude-sonnet-4-5",
				MaxTokens: 4096,
			},
			"gemini": {
				APIKey:    "${GOOGLE_API_KEY}",
				Model:     "gemini-2.5-flash",
				MaxTokens: 4096,
			},
			"ollama": {
				Endpoint:  "http://localhost:11434/v1",
				Model:     "llama3.1",
				MaxTokens: 4096,
			},
		},
		Format: FormatConfig{
			Temperature: 0.3,
			Language:    "en",
			MaxTokens:   4096,
		},
		Output: OutputConfig{
			SplitLevel:     1,
			AssetsDir:      "assets",
			ChaptersDir:    "chapters",
			ChapterPattern: output.DefaultPattern,
			FrontMatter:    true,
			Navigation:     true,
			RunValidators:  true,
			StripTOC:       true,
			Locale:         "en",
		},
		Render: RenderConfig{
			Concurrency: 4,
			Fallback:    FallbackDeterministic,
		},
		Parser: ParserConfig{
			Engine:        EngineNative,
			ExtractImages: true,
			Upstage: Provider{
				APIKey: "${UPSTAGE_API_KEY}",
			},
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 64,
		},
	}
}

// GetProvider returns the provider configuration by name.
func (c *Config) GetProvider(name string) (*Provider, bool) {
	p, ok := c.Providers[name]
	if !ok {
		return nil, false
	}
	return &p, true
}

// GetDefaultProvider returns the default provider configuration.
func (c *Config) GetDefaultProvider() (*Provider, bool) {
	return c.GetProvider(c.DefaultProvider)
}

// Validate reports invalid settings.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultProvider, validation.By(func(value any) error {
			name, _ := value.(string)
			if name == "" {
				return nil
			}
			if _, ok := c.Providers[name]; !ok {
				return validation.NewError("config.default_provider.unknown", "default provider is not configured")
			}
			return nil
		})),
		validation.Field(&c.Format),
		validation.Field(&c.Output),
		validation.Field(&c.Render),
		validation.Field(&c.Parser),
		validation.Field(&c.Server),
	)
}

// Validate implements validation.Validatable.
func (f FormatConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&f.MaxTokens, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (o OutputConfig) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SplitLevel, validation.Required, validation.Min(1), validation.Max(6)),
		validation.Field(&o.AssetsDir, validation.Required, validation.By(relativeDir)),
		validation.Field(&o.ChaptersDir, validation.By(relativeDir)),
		validation.Field(&o.ChapterPattern, validation.Required, validation.By(func(value any) error {
			if err := output.ValidatePattern(value.(string)); err != nil {
				return validation.NewError("config.output.chapter_pattern.invalid", err.Error())
			}
			return nil
		})),
	)
}

// Validate implements validation.Validatable.
func (r RenderConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&r.Fallback, validation.Required,
			validation.In(FallbackDeterministic, FallbackDryRun, FallbackAbort)),
	)
}

// Validate implements validation.Validatable.
func (p ParserConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Engine, validation.Required, validation.In(EngineNative, EngineUpstage)),
	)
}

// Validate implements validation.Validatable.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.MaxUploadMB, validation.Min(0)),
	)
}

// relativeDir accepts empty values and slash-separated relative paths that
// stay inside the output root.
func relativeDir(value any) error {
	dir, _ := value.(string)
	if dir == "" {
		return nil
	}
	if strings.HasPrefix(dir, "/") || strings.Contains(dir, "\\") {
		return validation.NewError("config.output.dir.absolute", "must be a relative path")
	}
	for _, part := range strings.Split(dir, "/") {
		if part == ".." {
			return validation.NewError("config.output.dir.escapes", "must stay inside the output directory")
		}
	}
	return nil
}
