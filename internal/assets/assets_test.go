package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/fsutil"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/split"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func chapterWithImages(ordinal int, refs ...*ir.ResourceRef) *split.Chapter {
	ch := &split.Chapter{Ordinal: ordinal, Title: "c"}
	for _, ref := range refs {
		ch.Blocks = append(ch.Blocks, ir.NewImage(ref).Block())
	}
	return ch
}

type countingWriter struct {
	fsutil.Dir
	writes atomic.Int32
}

func (w *countingWriter) WriteFile(rel string, data []byte) error {
	w.writes.Add(1)
	return w.Dir.WriteFile(rel, data)
}

type failingWriter struct{}

func (failingWriter) WriteFile(string, []byte) error { return errors.New("disk full") }

func TestExporter_DeduplicatesByContent(t *testing.T) {
	root := t.TempDir()
	w := &countingWriter{Dir: fsutil.Dir(root)}
	data := pngBytes(t, 3, 2)

	chapters := []*split.Chapter{
		chapterWithImages(0, ir.NewResource("rId1", "image/png", data)),
		chapterWithImages(1, ir.NewResource("image7.png", "", append([]byte(nil), data...))),
	}

	e := NewExporter(Options{Dir: "assets", ChapterDir: "chapters"}, nil, w, nil, nil)
	m, err := e.Export(context.Background(), chapters)
	require.NoError(t, err)

	require.Len(t, m, 1)
	assert.Equal(t, int32(1), w.writes.Load())

	files, err := os.ReadDir(filepath.Join(root, "assets"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	list := e.Store().Assets()
	require.Len(t, list, 1)
	a := list[0]
	assert.Equal(t, []int{0, 1}, a.Chapters)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, 3, a.Width)
	assert.Equal(t, 2, a.Height)
	assert.Equal(t, "assets/"+a.ContentID[:16]+".png", a.Path)

	for _, ch := range chapters {
		img := ch.Blocks[0].Image
		assert.Equal(t, "../"+a.Path, img.Path)
		assert.False(t, img.Missing)
	}
}

func TestExporter_NamingIndependentOfOrder(t *testing.T) {
	first := []byte("GIF89a first payload")
	second := pngBytes(t, 1, 1)

	run := func(reverse bool) map[string]string {
		chapters := []*split.Chapter{
			chapterWithImages(0, ir.NewResource("a", "image/gif", first)),
			chapterWithImages(1, ir.NewResource("b", "image/png", second)),
		}
		if reverse {
			chapters[0], chapters[1] = chapters[1], chapters[0]
		}
		e := NewExporter(Options{}, nil, fsutil.Dir(t.TempDir()), nil, nil)
		m, err := e.Export(context.Background(), chapters)
		require.NoError(t, err)
		return m
	}

	assert.Equal(t, run(false), run(true))
}

func TestExporter_ConflictingHintsNameByPayload(t *testing.T) {
	data := pngBytes(t, 2, 1)

	run := func(reverse bool) map[string]string {
		chapters := []*split.Chapter{
			chapterWithImages(0, ir.NewResource("a", "image/jpeg", data)),
			chapterWithImages(1, ir.NewResource("b", "image/png", data)),
		}
		if reverse {
			chapters[0], chapters[1] = chapters[1], chapters[0]
		}
		e := NewExporter(Options{}, nil, fsutil.Dir(t.TempDir()), nil, nil)
		m, err := e.Export(context.Background(), chapters)
		require.NoError(t, err)
		return m
	}

	forward := run(false)
	require.Len(t, forward, 1)
	for _, p := range forward {
		assert.Regexp(t, `^assets/[0-9a-f]{16}\.png$`, p)
	}
	assert.Equal(t, forward, run(true))
}

func TestExporter_ChapterAssetList(t *testing.T) {
	a := pngBytes(t, 1, 1)
	b := pngBytes(t, 2, 2)
	refA := ir.NewResource("a", "image/png", a)
	ch := chapterWithImages(0, refA, ir.NewResource("b", "image/png", b), refA)

	e := NewExporter(Options{ChapterDir: "chapters"}, nil, fsutil.Dir(t.TempDir()), nil, nil)
	paths, err := e.ExportChapter(context.Background(), ch)
	require.NoError(t, err)

	require.Len(t, paths, 2)
	idA, _ := refA.ContentID()
	assert.Equal(t, "assets/"+idA[:16]+".png", paths[0])
}

func TestExporter_PlaceholderForBadPayload(t *testing.T) {
	root := t.TempDir()
	var d diag.List
	good := pngBytes(t, 1, 1)

	chapters := []*split.Chapter{
		chapterWithImages(0, ir.NewResource("ok-0", "image/png", good)),
		chapterWithImages(1, ir.NewResource("rId9", "image/png", nil)),
		chapterWithImages(2, &ir.ResourceRef{ID: "gone", TempPath: filepath.Join(root, "missing.tmp")}),
	}

	e := NewExporter(Options{ChapterDir: "chapters"}, nil, fsutil.Dir(root), &d, nil)
	_, err := e.Export(context.Background(), chapters)
	require.NoError(t, err)

	img := chapters[1].Blocks[0].Image
	assert.True(t, img.Missing)
	assert.Equal(t, PlaceholderPrefix+"rId9", img.Path)

	entries := d.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Chapter)
	assert.Equal(t, "rId9", entries[0].Asset)
	assert.Equal(t, diag.Error, entries[0].Severity)
	assert.Equal(t, 2, entries[1].Chapter)

	missing := e.Store().Missing()
	require.Len(t, missing, 2)
	assert.Equal(t, "rId9", missing[0].ResourceID)
	assert.Equal(t, 1, e.Store().Len())
}

func TestExporter_WriteFailureIsReturned(t *testing.T) {
	e := NewExporter(Options{}, nil, failingWriter{}, nil, nil)
	_, err := e.Export(context.Background(), []*split.Chapter{
		chapterWithImages(0, ir.NewResource("a", "image/png", []byte("x"))),
	})
	assert.ErrorContains(t, err, "disk full")
}

func TestExporter_ConcurrentChaptersWriteOnce(t *testing.T) {
	w := &countingWriter{Dir: fsutil.Dir(t.TempDir())}
	store := NewStore()
	data := pngBytes(t, 4, 4)
	e := NewExporter(Options{}, store, w, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := chapterWithImages(i, ir.NewResource("r", "image/png", data))
			_, err := e.ExportChapter(context.Background(), ch)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), w.writes.Load())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, store.Assets()[0].Chapters)
}

func TestExporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExporter(Options{}, nil, fsutil.Dir(t.TempDir()), nil, nil)
	_, err := e.ExportChapter(ctx, chapterWithImages(0, ir.NewResource("a", "image/png", []byte("x"))))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		data     []byte
		wantExt  string
		wantMIME string
	}{
		{"hint", "image/jpeg", nil, ".jpg", "image/jpeg"},
		{"hint with params", "image/PNG; q=1", nil, ".png", "image/png"},
		{"sniffed", "", []byte("GIF89a...."), ".gif", "image/gif"},
		{"octet hint sniffed", "application/octet-stream", []byte("%PDF-1.7\n"), ".pdf", "application/pdf"},
		{"unknown", "", []byte{0x00, 0x01, 0x02}, ".bin", "application/octet-stream"},
		{"payload beats wrong hint", "image/jpeg", []byte("GIF89a...."), ".gif", "image/gif"},
		{"hint for unsniffable payload", "image/x-emf", []byte{0x01, 0x00, 0x00, 0x00}, ".emf", "image/x-emf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, mt := Extension(tt.mime, tt.data)
			assert.Equal(t, tt.wantExt, ext)
			assert.Equal(t, tt.wantMIME, mt)
		})
	}
}

func TestRelativeTo(t *testing.T) {
	assert.Equal(t, "assets/a.png", RelativeTo("", "assets/a.png"))
	assert.Equal(t, "../assets/a.png", RelativeTo("chapters", "assets/a.png"))
	assert.Equal(t, "../../assets/a.png", RelativeTo("out/chapters/", "assets/a.png"))
}
