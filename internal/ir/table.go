package ir

// TableBlock represents a table region in the document. Cells holds rows of
// cells; rows may differ in width until the normalizer repairs them.
type TableBlock struct {
	Cells     [][]Cell `json:"cells"`
	Caption   string   `json:"caption,omitempty"`    // table caption if any
	HasHeader bool     `json:"has_header,omitempty"` // first row is header
}

// Cell represents a single cell in a table.
type Cell struct {
	Blocks  []Block `json:"blocks,omitempty"`
	RowSpan int     `json:"row_span,omitempty"` // number of rows this cell spans
	ColSpan int     `json:"col_span,omitempty"` // number of columns this cell spans
	Merged  bool    `json:"merged,omitempty"`   // position covered by a spanning cell
}

// NewTable creates a new table with the specified dimensions.
func NewTable(rows, cols int) *TableBlock {
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = make([]Cell, cols)
		for j := range cells[i] {
			cells[i][j] = Cell{
				RowSpan: 1,
				ColSpan: 1,
			}
		}
	}
	return &TableBlock{
		Cells: cells,
	}
}

// NewTableFromRows creates a table from rows of plain text.
func NewTableFromRows(rows [][]string) *TableBlock {
	t := &TableBlock{Cells: make([][]Cell, len(rows))}
	for i, row := range rows {
		t.Cells[i] = make([]Cell, len(row))
		for j, text := range row {
			t.Cells[i][j] = TextCell(text)
		}
	}
	return t
}

// TextCell returns a cell holding one paragraph of text.
func TextCell(text string) Cell {
	c := Cell{RowSpan: 1, ColSpan: 1}
	if text != "" {
		c.Blocks = []Block{NewParagraph(text).Block()}
	}
	return c
}

// Rows returns the number of rows.
func (t *TableBlock) Rows() int {
	return len(t.Cells)
}

// Width returns the widest row's cell count.
func (t *TableBlock) Width() int {
	w := 0
	for _, row := range t.Cells {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// SetCell sets the content of a specific cell to a paragraph of text.
func (t *TableBlock) SetCell(row, col int, text string) {
	if c := t.GetCell(row, col); c != nil {
		c.Blocks = TextCell(text).Blocks
	}
}

// GetCell returns the cell at the specified position.
func (t *TableBlock) GetCell(row, col int) *Cell {
	if row >= 0 && row < len(t.Cells) && col >= 0 && col < len(t.Cells[row]) {
		return &t.Cells[row][col]
	}
	return nil
}

// SetHeaderRow marks the first row as a header row.
func (t *TableBlock) SetHeaderRow() {
	t.HasHeader = true
}

// MergedCell returns a placeholder for a grid position covered by a
// spanning cell.
func MergedCell() Cell {
	return Cell{RowSpan: 1, ColSpan: 1, Merged: true}
}

// Text returns the cell text with markup removed.
func (c *Cell) Text() string {
	return blocksText(c.Blocks)
}

// Block wraps the table in a Block.
func (t *TableBlock) Block() Block {
	return Block{Type: BlockTypeTable, Table: t}
}

func (t *TableBlock) allBlocks() []Block {
	var out []Block
	for _, row := range t.Cells {
		for _, c := range row {
			out = append(out, c.Blocks...)
		}
	}
	return out
}
