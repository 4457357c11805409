package ir

import "strings"

// Walk visits blocks depth-first in document order. The callback receives a
// pointer into the backing slice so it may edit the block in place.
// Returning false skips the block's children.
func Walk(blocks []Block, fn func(b *Block) bool) {
	for i := range blocks {
		b := &blocks[i]
		if !fn(b) {
			continue
		}
		switch b.Type {
		case BlockTypeList:
			if b.List == nil {
				continue
			}
			for j := range b.List.Items {
				Walk(b.List.Items[j].Blocks, fn)
			}
		case BlockTypeQuote:
			if b.Quote != nil {
				Walk(b.Quote.Blocks, fn)
			}
		case BlockTypeTable:
			if b.Table == nil {
				continue
			}
			for r := range b.Table.Cells {
				for c := range b.Table.Cells[r] {
					Walk(b.Table.Cells[r][c].Blocks, fn)
				}
			}
		}
	}
}

// Images returns every image block in document order.
func Images(blocks []Block) []*ImageBlock {
	var out []*ImageBlock
	Walk(blocks, func(b *Block) bool {
		if b.Type == BlockTypeImage && b.Image != nil {
			out = append(out, b.Image)
		}
		return true
	})
	return out
}

// CloneBlocks returns a deep copy of blocks.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() Block {
	out := Block{Type: b.Type}
	if b.Heading != nil {
		out.Heading = &Heading{Level: b.Heading.Level, Inlines: CloneInlines(b.Heading.Inlines)}
	}
	if b.Paragraph != nil {
		out.Paragraph = &Paragraph{Inlines: CloneInlines(b.Paragraph.Inlines), Style: b.Paragraph.Style}
	}
	if b.List != nil {
		l := &ListBlock{Ordered: b.List.Ordered, Start: b.List.Start, Items: make([]ListItem, len(b.List.Items))}
		for i, it := range b.List.Items {
			l.Items[i] = ListItem{Blocks: CloneBlocks(it.Blocks)}
		}
		out.List = l
	}
	if b.Table != nil {
		t := &TableBlock{Caption: b.Table.Caption, HasHeader: b.Table.HasHeader, Cells: make([][]Cell, len(b.Table.Cells))}
		for r, row := range b.Table.Cells {
			t.Cells[r] = make([]Cell, len(row))
			for c, cell := range row {
				t.Cells[r][c] = Cell{Blocks: CloneBlocks(cell.Blocks), RowSpan: cell.RowSpan, ColSpan: cell.ColSpan}
			}
		}
		out.Table = t
	}
	if b.Image != nil {
		img := *b.Image
		out.Image = &img
	}
	if b.Code != nil {
		c := *b.Code
		out.Code = &c
	}
	if b.Quote != nil {
		out.Quote = &QuoteBlock{Blocks: CloneBlocks(b.Quote.Blocks)}
	}
	return out
}

func blocksText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for i := range blocks {
		if s := blocks[i].PlainText(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
