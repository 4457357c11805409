// Package pipeline runs a parsed document through normalization, chapter
// splitting, asset export and rendering, then writes the chapter files,
// the index and the manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roboco-io/chaptermd/internal/assets"
	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/normalize"
	"github.com/roboco-io/chaptermd/internal/output"
	"github.com/roboco-io/chaptermd/internal/render"
	"github.com/roboco-io/chaptermd/internal/split"
	"github.com/roboco-io/chaptermd/internal/validate"
)

// Result describes a finished run.
type Result struct {
	Root        string
	Document    output.DocumentInfo
	Chapters    []output.ChapterOutput
	Manifest    *output.Manifest
	Diagnostics []diag.Entry
	Degraded    bool
	Elapsed     time.Duration
}

// PlannedChapter is a chapter as it will be written, before rendering.
type PlannedChapter struct {
	Ordinal     int    `json:"ordinal"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	File        string `json:"file"`
	Blocks      int    `json:"blocks"`
	Images      int    `json:"images"`
	FrontMatter bool   `json:"front_matter,omitempty"`
}

// Pipeline converts documents with fixed options. It holds no per-run
// state and may be reused.
type Pipeline struct {
	opts       Options
	log        *slog.Logger
	normalizer *normalize.Normalizer
	validator  *validate.Set
}

// New creates a pipeline. Zero option fields take their defaults.
func New(opts Options, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, stageError(StageInput, CodeInvalidOption, err)
	}
	return &Pipeline{
		opts:       opts,
		log:        log,
		normalizer: normalize.New(normalize.Options{StripTOC: opts.StripTOC}),
		validator:  validate.Default(),
	}, nil
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

type plan struct {
	doc      *ir.Document
	info     output.DocumentInfo
	chapters []*split.Chapter
	outputs  []output.ChapterOutput // read-only skeleton: titles and files
	diags    *diag.List
}

func (p *Pipeline) prepare(doc *ir.Document) (*plan, error) {
	if doc == nil || doc.IsEmpty() {
		return nil, stageError(StageInput, CodeEmptyDocument, ErrEmptyDocument)
	}
	normalized, entries := p.normalizer.Run(doc)
	if normalized.IsEmpty() {
		return nil, stageError(StageInput, CodeEmptyDocument, ErrEmptyDocument)
	}
	diags := &diag.List{}
	diags.AddAll(entries)

	chapters := split.Split(normalized, p.opts.SplitLevel)
	width := output.OrdinalWidth(len(chapters))
	outputs := make([]output.ChapterOutput, len(chapters))
	for i, ch := range chapters {
		outputs[i] = output.ChapterOutput{
			Ordinal: ch.Ordinal,
			Title:   ch.Title,
			Slug:    ch.Slug,
			File:    path.Join(p.opts.ChaptersDir, output.FileName(p.opts.ChapterPattern, ch.Ordinal, width, ch.Slug)),
			Blocks:  len(ch.Blocks),
		}
	}

	locale := p.opts.Locale
	if locale == "" {
		locale = normalized.Metadata.Locale
	}
	return &plan{
		doc: normalized,
		info: output.DocumentInfo{
			ID:     DocumentID(normalized),
			Title:  documentTitle(normalized),
			Source: normalized.Metadata.Source,
			Format: normalized.Metadata.Format,
			Locale: locale,
			Author: normalized.Metadata.Author,
		},
		chapters: chapters,
		outputs:  outputs,
		diags:    diags,
	}, nil
}

func documentTitle(doc *ir.Document) string {
	if t := strings.TrimSpace(doc.Metadata.Title); t != "" {
		return t
	}
	if src := doc.Metadata.Source; src != "" {
		return strings.TrimSuffix(src, filepath.Ext(src))
	}
	return split.DefaultTitle
}

// Plan normalizes and splits doc and reports the chapters a run would
// write. Nothing is written.
func (p *Pipeline) Plan(doc *ir.Document) ([]PlannedChapter, []diag.Entry, error) {
	pl, err := p.prepare(doc)
	if err != nil {
		return nil, nil, err
	}
	planned := make([]PlannedChapter, len(pl.chapters))
	for i, ch := range pl.chapters {
		planned[i] = PlannedChapter{
			Ordinal:     ch.Ordinal,
			Title:       ch.Title,
			Slug:        ch.Slug,
			File:        pl.outputs[i].File,
			Blocks:      len(ch.Blocks),
			Images:      len(ir.Images(ch.Blocks)),
			FrontMatter: ch.FrontMatter,
		}
	}
	return planned, pl.diags.Entries(), nil
}

// Run converts doc into root. Fatal errors are *StageError values; when the
// run created root it is removed again on failure. index.md and
// manifest.json are written only after every chapter file.
func (p *Pipeline) Run(ctx context.Context, doc *ir.Document, root string) (res *Result, err error) {
	start := time.Now()
	pl, err := p.prepare(doc)
	if err != nil {
		return nil, err
	}
	log := p.log.With("document", pl.info.ID)

	created, err := prepareRoot(root)
	if err != nil {
		return nil, stageError(StageOutput, CodeOutputFailed, err)
	}
	defer func() {
		if err != nil && created {
			if rmErr := os.RemoveAll(root); rmErr != nil {
				log.Warn("cleanup failed", "root", root, "error", rmErr)
			}
		}
	}()

	w := output.NewWriter(root, log)
	for _, name := range []string{output.IndexFile, output.ManifestFile} {
		if err := w.Remove(name); err != nil {
			return nil, stageError(StageOutput, CodeOutputFailed, err)
		}
	}

	exporter := assets.NewExporter(assets.Options{Dir: p.opts.AssetsDir, ChapterDir: p.opts.ChaptersDir},
		assets.NewStore(), w, pl.diags, log)
	fb := &fallbacks{byOrdinal: make(map[int]fallback)}
	renderer := p.renderer(fb, pl.diags, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type chapterResult struct {
		out output.ChapterOutput
		err error
		idx int
	}
	results := make(chan chapterResult, len(pl.chapters))
	sem := make(chan struct{}, p.opts.Concurrency)
	for i := range pl.chapters {
		sem <- struct{}{}
		go func(i int) {
			defer func() { <-sem }()
			out, err := p.chapter(runCtx, pl, i, exporter, renderer, fb, w, log)
			results <- chapterResult{out: out, err: err, idx: i}
		}(i)
	}

	outputs := make([]output.ChapterOutput, len(pl.chapters))
	var firstErr error
	for range pl.chapters {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		outputs[r.idx] = r.out
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, stageError(StageFinalize, CodeCanceled, err)
	}

	params := output.Parameters{
		SplitLevel:     p.opts.SplitLevel,
		AssetsDir:      p.opts.AssetsDir,
		ChaptersDir:    p.opts.ChaptersDir,
		ChapterPattern: p.opts.ChapterPattern,
		FrontMatter:    p.opts.FrontMatter,
		Navigation:     p.opts.Navigation,
		DryRun:         p.opts.DryRun,
		Renderer:       renderer.Name(),
		Fallback:       string(p.opts.Fallback),
	}
	entries := pl.diags.Entries()
	index, manifest, m, err := output.Finalize(pl.info, params, p.opts.Generator, outputs, exporter.Store(), entries)
	if err != nil {
		return nil, stageError(StageFinalize, CodeFinalize, err)
	}
	if err := w.WriteFile(output.IndexFile, []byte(index)); err != nil {
		return nil, stageError(StageFinalize, CodeFinalize, err)
	}
	if err := w.WriteFile(output.ManifestFile, manifest); err != nil {
		return nil, stageError(StageFinalize, CodeFinalize, err)
	}

	res = &Result{
		Root:        root,
		Document:    pl.info,
		Chapters:    outputs,
		Manifest:    m,
		Diagnostics: entries,
		Degraded:    m.Degraded,
		Elapsed:     time.Since(start),
	}
	log.Info("conversion complete",
		"chapters", m.ChapterCount,
		"assets", m.AssetCount,
		"degraded", m.Degraded,
		"diagnostics", len(entries),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}

func (p *Pipeline) chapter(ctx context.Context, pl *plan, i int, exporter *assets.Exporter, renderer render.Renderer, fb *fallbacks, w *output.Writer, log *slog.Logger) (output.ChapterOutput, error) {
	ch := pl.chapters[i]
	out := pl.outputs[i]
	log = log.With("chapter", ch.Ordinal)

	paths, err := exporter.ExportChapter(ctx, ch)
	if err != nil {
		return out, stageError(StageAssets, CodeAssetsFailed, fmt.Errorf("chapter %d: %w", ch.Ordinal, err))
	}
	out.Assets = paths
	for _, img := range ir.Images(ch.Blocks) {
		if img.Missing && img.Ref != nil {
			out.Degraded = true
			out.Warnings = append(out.Warnings, fmt.Sprintf("asset %s replaced by placeholder", img.Ref.ID))
		}
	}

	body, err := renderer.Render(ctx, ch)
	if err != nil {
		return out, stageError(StageRender, CodeRenderFailed, err)
	}
	out.Renderer = renderer.Name()
	if f, ok := fb.get(ch.Ordinal); ok {
		out.Renderer = f.renderer
		out.Degraded = true
		out.Warnings = append(out.Warnings, fmt.Sprintf("rendered with %s after failure: %v", f.renderer, f.err))
	}

	var fm *output.FrontMatter
	if p.opts.FrontMatter {
		fm = &output.FrontMatter{
			Title:   ch.Title,
			Chapter: ch.Ordinal,
			Slug:    ch.Slug,
			Source:  pl.info.Source,
			Locale:  pl.info.Locale,
		}
	}
	var nav *output.Nav
	if p.opts.Navigation {
		nav = output.NavFor(pl.outputs, i, p.opts.ChaptersDir)
	}
	text, err := output.ChapterFile(fm, body, nav)
	if err != nil {
		return out, stageError(StageOutput, CodeOutputFailed, err)
	}

	if p.opts.Validate && out.Renderer != render.DryRunName {
		v := p.validator
		if ch.FrontMatter {
			v = v.Without("single-h1")
		}
		for _, f := range v.Validate([]byte(text)) {
			out.Warnings = append(out.Warnings, f.String())
			pl.diags.Add(diag.Entry{
				Stage:    validate.Stage,
				Severity: diag.Warning,
				Chapter:  ch.Ordinal,
				Message:  f.String(),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return out, stageError(StageOutput, CodeCanceled, err)
	}
	out.Text = text
	if err := w.WriteFile(out.File, []byte(text)); err != nil {
		return out, stageError(StageOutput, CodeOutputFailed, err)
	}
	log.Debug("chapter written", "file", out.File, "renderer", out.Renderer, "degraded", out.Degraded)
	return out, nil
}

// renderer selects the chapter strategy: dry-run output, the deterministic
// renderer, or a non-deterministic primary wrapped with the configured
// fallback.
func (p *Pipeline) renderer(fb *fallbacks, diags *diag.List, log *slog.Logger) render.Renderer {
	if p.opts.DryRun {
		return render.NewDryRun()
	}
	primary := p.opts.Renderer
	if primary == nil {
		return render.NewMarkdown()
	}
	if _, ok := primary.(*render.Markdown); ok {
		return primary
	}
	var secondary render.Renderer
	switch p.opts.Fallback {
	case FallbackAbort:
		return primary
	case FallbackDryRun:
		secondary = render.NewDryRun()
	default:
		secondary = render.NewMarkdown()
	}
	return render.WithFallback(primary, secondary, func(ch *split.Chapter, err error) {
		fb.set(ch.Ordinal, fallback{renderer: secondary.Name(), err: err})
		diags.Add(diag.Entry{
			Stage:    render.Stage,
			Severity: diag.Warning,
			Chapter:  ch.Ordinal,
			Message:  fmt.Sprintf("%s failed, rendered with %s: %v", primary.Name(), secondary.Name(), err),
		})
		log.Warn("chapter degraded", "chapter", ch.Ordinal, "renderer", primary.Name(), "fallback", secondary.Name(), "error", err)
	})
}

type fallback struct {
	renderer string
	err      error
}

type fallbacks struct {
	mu        sync.Mutex
	byOrdinal map[int]fallback
}

func (f *fallbacks) set(ordinal int, fb fallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOrdinal[ordinal] = fb
}

func (f *fallbacks) get(ordinal int) (fallback, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fb, ok := f.byOrdinal[ordinal]
	return fb, ok
}

// prepareRoot makes sure root is a directory and reports whether it had to
// be created.
func prepareRoot(root string) (bool, error) {
	info, err := os.Stat(root)
	switch {
	case err == nil && !info.IsDir():
		return false, fmt.Errorf("output root %s is not a directory", root)
	case err == nil:
		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, fmt.Errorf("create output root: %w", err)
	}
	return true, nil
}
