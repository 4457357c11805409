// Package render turns chapters into text. Strategies share the Renderer
// interface so that falling back from one to another is a substitution.
package render

import (
	"context"
	"errors"

	"github.com/roboco-io/chaptermd/internal/split"
)

// Stage is the diagnostics stage name for render findings.
const Stage = "render"

// ErrUnsupportedBlock is returned for block types a renderer cannot map.
var ErrUnsupportedBlock = errors.New("unsupported block")

// Renderer renders one chapter.
type Renderer interface {
	Name() string
	Render(ctx context.Context, ch *split.Chapter) (string, error)
}

// Fallback substitutes a secondary renderer when the primary one fails.
type Fallback struct {
	primary    Renderer
	secondary  Renderer
	onFallback func(ch *split.Chapter, err error)
}

// WithFallback returns a renderer that tries primary and, on any error other
// than cancellation, reports the failure through onFallback and renders the
// chapter with secondary instead.
func WithFallback(primary, secondary Renderer, onFallback func(ch *split.Chapter, err error)) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, onFallback: onFallback}
}

// Name returns the primary renderer's name.
func (f *Fallback) Name() string {
	return f.primary.Name()
}

// Render implements Renderer.
func (f *Fallback) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	out, err := f.primary.Render(ctx, ch)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if f.onFallback != nil {
		f.onFallback(ch, err)
	}
	return f.secondary.Render(ctx, ch)
}

// DryRunName names the dry-run strategy.
const DryRunName = "dry-run"

// DryRun emits the intermediate HTML text instead of calling a model.
type DryRun struct {
	html *HTML
}

// NewDryRun creates the pass-through renderer.
func NewDryRun() *DryRun {
	return &DryRun{html: NewHTML()}
}

// Name implements Renderer.
func (d *DryRun) Name() string { return DryRunName }

// Render implements Renderer.
func (d *DryRun) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	return d.html.Render(ctx, ch)
}
