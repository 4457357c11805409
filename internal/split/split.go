// Package split partitions a normalized document into chapters at heading
// boundaries.
package split

import (
	"fmt"
	"strings"

	"github.com/roboco-io/chaptermd/internal/ir"
)

const (
	// FrontMatterTitle names the chapter holding content before the first
	// boundary heading.
	FrontMatterTitle = "Front Matter"
	// DefaultTitle names the single chapter of a document without boundaries.
	DefaultTitle = "Document"
	// DefaultLevel is the default split heading level.
	DefaultLevel = 1
)

// Chapter is a contiguous slice of the document's top-level blocks.
type Chapter struct {
	Ordinal     int
	Title       string
	Slug        string
	Blocks      []ir.Block
	Heading     *ir.Heading // boundary heading, nil for front matter
	FrontMatter bool
}

// Split scans the top-level blocks once and starts a new chapter at every
// heading whose level is at or above level. Content before the first such
// heading becomes a front matter chapter when non-empty. A document without
// boundary headings yields one chapter holding everything.
func Split(doc *ir.Document, level int) []*Chapter {
	if doc == nil || len(doc.Content) == 0 {
		return nil
	}
	level = ir.ClampLevel(level)

	var (
		chapters []*Chapter
		front    []ir.Block
		cur      *Chapter
	)
	for _, b := range doc.Content {
		if b.Type == ir.BlockTypeHeading && b.Heading.Level <= level {
			cur = &Chapter{Heading: b.Heading, Blocks: []ir.Block{b}}
			chapters = append(chapters, cur)
			continue
		}
		if cur == nil {
			front = append(front, b)
			continue
		}
		cur.Blocks = append(cur.Blocks, b)
	}

	switch {
	case len(chapters) == 0:
		title := strings.TrimSpace(doc.Metadata.Title)
		if title == "" {
			title = DefaultTitle
		}
		chapters = []*Chapter{{Title: title, Blocks: front}}
	case len(front) > 0:
		fm := &Chapter{Title: FrontMatterTitle, Slug: "front-matter", Blocks: front, FrontMatter: true}
		chapters = append([]*Chapter{fm}, chapters...)
	}

	seen := make(map[string]bool, len(chapters))
	for i, ch := range chapters {
		ch.Ordinal = i
		if ch.Heading != nil {
			ch.Title = Title(ch.Heading)
		}
		if ch.Slug == "" {
			ch.Slug = Slugify(ch.Title, MaxSlugLength)
		}
		if ch.Slug == "" {
			ch.Slug = fmt.Sprintf("chapter-%d", i)
		}
		if ch.Title == "" {
			ch.Title = fmt.Sprintf("Chapter %d", i)
		}
		for seen[ch.Slug] {
			ch.Slug = fmt.Sprintf("%s-%d", ch.Slug, i)
		}
		seen[ch.Slug] = true
	}
	return chapters
}

// Title flattens a heading into a single line of plain text.
func Title(h *ir.Heading) string {
	return strings.Join(strings.Fields(h.Text()), " ")
}

// BlockCount returns the number of top-level blocks across chapters.
func BlockCount(chapters []*Chapter) int {
	n := 0
	for _, ch := range chapters {
		n += len(ch.Blocks)
	}
	return n
}
