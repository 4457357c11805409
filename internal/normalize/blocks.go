package normalize

import (
	"sort"
	"strings"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
)

// RepairTables pads or truncates every row to the most common row width.
// When two widths are equally common the wider one wins. Rows without cells
// are dropped.
func RepairTables() Pass {
	return passFunc{name: "repair-tables", fn: func(doc *ir.Document, _ *diag.List) {
		ir.Walk(doc.Content, func(b *ir.Block) bool {
			if b.Type == ir.BlockTypeTable {
				repairTable(b.Table)
			}
			return true
		})
	}}
}

func repairTable(t *ir.TableBlock) {
	rows := t.Cells[:0]
	for _, row := range t.Cells {
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	t.Cells = rows

	width := modalWidth(rows)
	for i, row := range t.Cells {
		switch {
		case len(row) > width:
			t.Cells[i] = row[:width]
		case len(row) < width:
			for len(row) < width {
				row = append(row, ir.TextCell(""))
			}
			t.Cells[i] = row
		}
	}
}

func modalWidth(rows [][]ir.Cell) int {
	counts := make(map[int]int)
	for _, row := range rows {
		counts[len(row)]++
	}
	widths := make([]int, 0, len(counts))
	for w := range counts {
		widths = append(widths, w)
	}
	sort.Ints(widths)
	best, bestCount := 0, 0
	for _, w := range widths {
		if counts[w] >= bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best
}

// DropEmpty removes blocks with no rendered content. Headings survive even
// when their text is empty, and thematic breaks are always kept.
func DropEmpty() Pass {
	return passFunc{name: "drop-empty", fn: func(doc *ir.Document, _ *diag.List) {
		doc.Content = dropEmpty(doc.Content)
	}}
}

func dropEmpty(blocks []ir.Block) []ir.Block {
	out := blocks[:0]
	for _, b := range blocks {
		if keep(&b) {
			out = append(out, b)
		}
	}
	return out
}

func keep(b *ir.Block) bool {
	switch b.Type {
	case ir.BlockTypeHeading, ir.BlockTypeThematicBreak:
		return true
	case ir.BlockTypeParagraph:
		return !b.Paragraph.IsEmpty()
	case ir.BlockTypeCode:
		return strings.TrimSpace(b.Code.Text) != ""
	case ir.BlockTypeImage:
		return b.Image.Ref != nil || b.Image.Path != ""
	case ir.BlockTypeQuote:
		b.Quote.Blocks = dropEmpty(b.Quote.Blocks)
		return len(b.Quote.Blocks) > 0
	case ir.BlockTypeList:
		items := b.List.Items[:0]
		for _, it := range b.List.Items {
			it.Blocks = dropEmpty(it.Blocks)
			if len(it.Blocks) > 0 {
				items = append(items, it)
			}
		}
		b.List.Items = items
		return len(items) > 0
	case ir.BlockTypeTable:
		for r := range b.Table.Cells {
			for c := range b.Table.Cells[r] {
				b.Table.Cells[r][c].Blocks = dropEmpty(b.Table.Cells[r][c].Blocks)
			}
		}
		return b.Table.Rows() > 0 && b.Table.Width() > 0
	}
	return b.Validate() == nil
}

// HeadingLevels keeps heading levels as authored and reports each jump of
// more than one level between consecutive top-level headings.
func HeadingLevels() Pass {
	return passFunc{name: "heading-levels", fn: func(doc *ir.Document, d *diag.List) {
		prev := 0
		for i, b := range doc.Content {
			if b.Type != ir.BlockTypeHeading {
				continue
			}
			level := b.Heading.Level
			if prev > 0 && level > prev+1 {
				d.Warnf(Stage, "heading level jumps from H%d to H%d at block %d (%q); kept as authored",
					prev, level, i, b.Heading.Text())
			}
			prev = level
		}
	}}
}
