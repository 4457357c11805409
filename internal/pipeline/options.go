package pipeline

import (
	"fmt"

	"github.com/roboco-io/chaptermd/internal/assets"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/output"
	"github.com/roboco-io/chaptermd/internal/render"
	"github.com/roboco-io/chaptermd/internal/split"
)

// Fallback selects what happens when the primary renderer fails a chapter.
type Fallback string

const (
	FallbackDeterministic Fallback = "deterministic"
	FallbackDryRun        Fallback = "dryrun"
	FallbackAbort         Fallback = "abort"
)

// Valid reports whether f is a known policy.
func (f Fallback) Valid() bool {
	switch f {
	case FallbackDeterministic, FallbackDryRun, FallbackAbort:
		return true
	}
	return false
}

// DefaultConcurrency bounds parallel chapter processing.
const DefaultConcurrency = 4

// Options configures a run.
type Options struct {
	SplitLevel     int
	AssetsDir      string
	ChaptersDir    string
	ChapterPattern string
	FrontMatter    bool
	Navigation     bool
	Validate       bool
	StripTOC       bool
	Locale         string
	DryRun         bool
	Concurrency    int
	Fallback       Fallback

	// Renderer is the primary strategy. Nil means the deterministic
	// Markdown renderer. It is ignored in dry-run mode.
	Renderer render.Renderer

	Generator string
}

// DefaultOptions returns the options of a plain deterministic run.
func DefaultOptions() Options {
	return Options{
		SplitLevel:     split.DefaultLevel,
		AssetsDir:      assets.DefaultDir,
		ChaptersDir:    output.DefaultChaptersDir,
		ChapterPattern: output.DefaultPattern,
		FrontMatter:    true,
		Navigation:     true,
		Validate:       true,
		StripTOC:       true,
		Concurrency:    DefaultConcurrency,
		Fallback:       FallbackDeterministic,
		Generator:      "chaptermd",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SplitLevel == 0 {
		o.SplitLevel = d.SplitLevel
	}
	if o.AssetsDir == "" {
		o.AssetsDir = d.AssetsDir
	}
	if o.ChaptersDir == "" {
		o.ChaptersDir = d.ChaptersDir
	}
	if o.ChapterPattern == "" {
		o.ChapterPattern = d.ChapterPattern
	}
	if o.Concurrency < 1 {
		o.Concurrency = d.Concurrency
	}
	if o.Fallback == "" {
		o.Fallback = d.Fallback
	}
	if o.Generator == "" {
		o.Generator = d.Generator
	}
	return o
}

func (o Options) validate() error {
	if o.SplitLevel < ir.MinHeadingLevel || o.SplitLevel > ir.MaxHeadingLevel {
		return fmt.Errorf("split level %d out of range", o.SplitLevel)
	}
	if err := output.ValidatePattern(o.ChapterPattern); err != nil {
		return err
	}
	if !o.Fallback.Valid() {
		return fmt.Errorf("unknown fallback %q", o.Fallback)
	}
	return nil
}
