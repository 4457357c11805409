package upstage

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/chaptermd/internal/ir"
)

// maxSpan caps rowspan and colspan values taken from the markup.
const maxSpan = 100

// htmlCell is one td or th before grid placement.
type htmlCell struct {
	text    string
	rowSpan int
	colSpan int
	header  bool
}

// ParseHTMLTable parses the first table in an HTML fragment. Positions
// covered by rowspan or colspan hold merged placeholders so every row
// spans the full grid.
func ParseHTMLTable(fragment string) *ir.TableBlock {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil
	}

	var table *html.Node
	for _, n := range nodes {
		if table = findElement(n, atom.Table); table != nil {
			break
		}
	}
	if table == nil {
		return nil
	}

	var rows [][]htmlCell
	thead := false
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				thead = true
				walk(c, true)
			case atom.Tbody, atom.Tfoot:
				walk(c, false)
			case atom.Tr:
				if row := parseRow(c, inHead); len(row) > 0 {
					rows = append(rows, row)
				}
			}
		}
	}
	walk(table, false)
	if len(rows) == 0 {
		return nil
	}

	t := place(rows)
	if thead || allHeader(rows[0]) {
		t.SetHeaderRow()
	}
	if caption := findElement(table, atom.Caption); caption != nil {
		t.Caption = textContent(caption)
	}
	return t
}

func parseRow(tr *html.Node, inHead bool) []htmlCell {
	var row []htmlCell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cell := htmlCell{
			text:    textContent(c),
			rowSpan: 1,
			colSpan: 1,
			header:  inHead || c.DataAtom == atom.Th,
		}
		for _, a := range c.Attr {
			switch a.Key {
			case "rowspan":
				cell.rowSpan = span(a.Val)
			case "colspan":
				cell.colSpan = span(a.Val)
			}
		}
		row = append(row, cell)
	}
	return row
}

func span(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxSpan)
}

// place lays cells out on a grid, skipping positions taken by rowspans
// from earlier rows.
func place(rows [][]htmlCell) *ir.TableBlock {
	grid := make([][]*ir.Cell, len(rows))
	put := func(r, c int, cell *ir.Cell) {
		for len(grid[r]) <= c {
			grid[r] = append(grid[r], nil)
		}
		grid[r][c] = cell
	}

	for r, row := range rows {
		col := 0
		for _, hc := range row {
			for col < len(grid[r]) && grid[r][col] != nil {
				col++
			}
			rowSpan := min(hc.rowSpan, len(rows)-r)
			cell := ir.TextCell(hc.text)
			cell.RowSpan, cell.ColSpan = rowSpan, hc.colSpan
			put(r, col, &cell)
			for dr := range rowSpan {
				for dc := range hc.colSpan {
					if dr == 0 && dc == 0 {
						continue
					}
					merged := ir.MergedCell()
					put(r+dr, col+dc, &merged)
				}
			}
			col += hc.colSpan
		}
	}

	t := &ir.TableBlock{Cells: make([][]ir.Cell, len(rows))}
	for r, row := range grid {
		t.Cells[r] = make([]ir.Cell, len(row))
		for c, cell := range row {
			if cell == nil {
				t.Cells[r][c] = ir.TextCell("")
				continue
			}
			t.Cells[r][c] = *cell
		}
	}
	return t
}

func allHeader(row []htmlCell) bool {
	for _, c := range row {
		if !c.header {
			return false
		}
	}
	return len(row) > 0
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// textContent extracts the text of n with <br> as a space and collapsed
// whitespace.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
