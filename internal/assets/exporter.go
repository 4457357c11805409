package assets

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/split"
)

const (
	// Stage is the diagnostics stage name for asset findings.
	Stage = "assets"
	// DefaultDir is the default assets directory name.
	DefaultDir = "assets"
	// PlaceholderPrefix starts the link target of an image whose payload
	// could not be exported.
	PlaceholderPrefix = "assets-missing:"
	// hashPrefixLen is the number of hex digits of the content hash used in
	// file names.
	hashPrefixLen = 16
)

// Writer stores a file below the output root. Paths are slash separated.
type Writer interface {
	WriteFile(rel string, data []byte) error
}

// Options configures the exporter layout.
type Options struct {
	Dir        string // assets directory, relative to the output root
	ChapterDir string // chapter directory, relative to the output root
}

// Exporter writes chapter resources into the shared store.
type Exporter struct {
	opts  Options
	store *Store
	w     Writer
	diags *diag.List
	log   *slog.Logger
}

// NewExporter creates an exporter. A nil store, diagnostics list or logger
// is replaced with a fresh one.
func NewExporter(opts Options, store *Store, w Writer, diags *diag.List, log *slog.Logger) *Exporter {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if store == nil {
		store = NewStore()
	}
	if diags == nil {
		diags = &diag.List{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Exporter{opts: opts, store: store, w: w, diags: diags, log: log}
}

// Store returns the exporter's asset store.
func (e *Exporter) Store() *Store {
	return e.store
}

// Export processes chapters in order and returns content id to asset path.
func (e *Exporter) Export(ctx context.Context, chapters []*split.Chapter) (map[string]string, error) {
	for _, ch := range chapters {
		if _, err := e.ExportChapter(ctx, ch); err != nil {
			return nil, err
		}
	}
	return e.store.Map(), nil
}

// ExportChapter writes every image payload of ch, rewrites the image paths
// to the chapter-relative asset location and returns the distinct asset
// paths (relative to the output root) in order of first reference.
// Unreadable or empty payloads become placeholders and are reported as
// diagnostics; only write failures are returned as errors.
func (e *Exporter) ExportChapter(ctx context.Context, ch *split.Chapter) ([]string, error) {
	var (
		paths []string
		seen  = make(map[string]bool)
	)
	for _, img := range ir.Images(ch.Blocks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if img.Ref == nil {
			continue
		}
		a, err := e.exportImage(ch, img)
		if err != nil {
			return nil, err
		}
		if a == nil || seen[a.Path] {
			continue
		}
		seen[a.Path] = true
		paths = append(paths, a.Path)
	}
	return paths, nil
}

func (e *Exporter) exportImage(ch *split.Chapter, img *ir.ImageBlock) (*Asset, error) {
	ref := img.Ref
	data, err := ref.Payload()
	if err == nil {
		_, err = ref.ContentID()
	}
	if err != nil {
		e.placeholder(ch, img, err)
		return nil, nil
	}
	id, _ := ref.ContentID()

	a, loaded, err := e.store.LoadOrStore(id, func() (*Asset, error) {
		ext, mimeType := Extension(ref.MIMEType, data)
		rel := path.Join(e.opts.Dir, id[:hashPrefixLen]+ext)
		if err := e.w.WriteFile(rel, data); err != nil {
			return nil, fmt.Errorf("write asset %s: %w", rel, err)
		}
		w, h := Dimensions(data)
		return &Asset{
			ContentID: id,
			Path:      rel,
			MIMEType:  mimeType,
			Size:      int64(len(data)),
			Width:     w,
			Height:    h,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if !loaded {
		e.log.Debug("asset exported", "chapter", ch.Ordinal, "resource", ref.ID, "path", a.Path)
	}
	e.store.Reference(id, ch.Ordinal)

	img.Path = RelativeTo(e.opts.ChapterDir, a.Path)
	img.Missing = false
	if img.Width == 0 && img.Height == 0 {
		img.SetDimensions(a.Width, a.Height)
	}
	return a, nil
}

func (e *Exporter) placeholder(ch *split.Chapter, img *ir.ImageBlock, cause error) {
	placeholder := PlaceholderPrefix + img.Ref.ID
	img.Path = placeholder
	img.Missing = true
	e.store.AddMissing(Missing{
		ResourceID:  img.Ref.ID,
		Placeholder: placeholder,
		Chapter:     ch.Ordinal,
		Reason:      cause.Error(),
	})
	e.diags.Add(diag.Entry{
		Stage:    Stage,
		Severity: diag.Error,
		Chapter:  ch.Ordinal,
		Asset:    img.Ref.ID,
		Message:  fmt.Sprintf("resource replaced by placeholder: %v", cause),
	})
	e.log.Warn("asset unavailable", "chapter", ch.Ordinal, "resource", img.Ref.ID, "error", cause)
}

// RelativeTo returns target, a path relative to the output root, as seen
// from a file inside dir.
func RelativeTo(dir, target string) string {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return target
	}
	depth := strings.Count(dir, "/") + 1
	return strings.Repeat("../", depth) + target
}
