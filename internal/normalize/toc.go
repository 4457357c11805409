package normalize

import (
	"regexp"
	"strings"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
)

// tocCaptions are the lower-cased captions that introduce a table of contents.
var tocCaptions = map[string]bool{
	"contents":          true,
	"table of contents": true,
	"toc":               true,
	"содержание":        true,
	"оглавление":        true,
}

// tocLeader matches "Title ....... 12" and "Title<TAB>12" entries.
var tocLeader = regexp.MustCompile(`(?:\.{3,}|…{2,}|\t+)\s*\d+\s*$`)

// minLeaderEntries is the number of leader lines needed to call a paragraph
// run a table of contents when no caption precedes it.
const minLeaderEntries = 3

// StripLeadingTOC removes a table of contents found right after the title:
// a list whose items are all internal links, or a run of dotted-leader
// paragraphs. A caption such as "Contents" directly before it goes too.
func StripLeadingTOC() Pass {
	return passFunc{name: "strip-leading-toc", fn: func(doc *ir.Document, d *diag.List) {
		for _, start := range candidateStarts(doc.Content) {
			if from, to, ok := matchTOC(doc.Content, start); ok {
				d.Add(diag.Entry{
					Stage:    Stage,
					Severity: diag.Info,
					Chapter:  diag.NoChapter,
					Message:  "removed leading table of contents",
				})
				doc.Content = append(doc.Content[:from], doc.Content[to:]...)
				return
			}
		}
	}}
}

// candidateStarts lists where a TOC may begin: the document start, and the
// block after a leading title heading.
func candidateStarts(blocks []ir.Block) []int {
	starts := []int{0}
	if len(blocks) > 1 && blocks[0].Type == ir.BlockTypeHeading && !isCaption(&blocks[0]) {
		starts = append(starts, 1)
	}
	return starts
}

// matchTOC reports the block range [from, to) holding a TOC at start.
func matchTOC(blocks []ir.Block, start int) (from, to int, ok bool) {
	i := start
	captioned := false
	if i < len(blocks) && isCaption(&blocks[i]) {
		captioned = true
		i++
	}
	if i >= len(blocks) {
		return 0, 0, false
	}
	if blocks[i].Type == ir.BlockTypeList && allInternalLinks(blocks[i].List) {
		return start, i + 1, true
	}
	n := 0
	for i+n < len(blocks) && isLeaderEntry(&blocks[i+n]) {
		n++
	}
	if n >= minLeaderEntries || (captioned && n > 0) {
		return start, i + n, true
	}
	return 0, 0, false
}

func isCaption(b *ir.Block) bool {
	var text string
	switch b.Type {
	case ir.BlockTypeHeading:
		text = b.Heading.Text()
	case ir.BlockTypeParagraph:
		text = b.Paragraph.Text()
	default:
		return false
	}
	text = strings.ToLower(strings.Trim(strings.TrimSpace(text), ":"))
	return tocCaptions[text]
}

func isLeaderEntry(b *ir.Block) bool {
	if b.Type != ir.BlockTypeParagraph {
		return false
	}
	return tocLeader.MatchString(strings.TrimRight(b.Paragraph.Text(), " "))
}

// allInternalLinks reports whether every item of l, including nested lists,
// consists only of links to anchors inside the document.
func allInternalLinks(l *ir.ListBlock) bool {
	if len(l.Items) == 0 {
		return false
	}
	for _, it := range l.Items {
		if len(it.Blocks) == 0 {
			return false
		}
		for _, b := range it.Blocks {
			switch b.Type {
			case ir.BlockTypeParagraph:
				if !onlyInternalLinks(b.Paragraph.Inlines) {
					return false
				}
			case ir.BlockTypeList:
				if !allInternalLinks(b.List) {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func onlyInternalLinks(inlines []ir.Inline) bool {
	links := 0
	for _, in := range inlines {
		switch {
		case in.IsInternal():
			links++
		case in.Type == ir.InlineText && strings.TrimSpace(in.Text) == "":
		case in.Type == ir.InlineStrong || in.Type == ir.InlineEmphasis:
			if !onlyInternalLinks(in.Children) {
				return false
			}
			links++
		default:
			return false
		}
	}
	return links > 0
}
