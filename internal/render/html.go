package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/split"
)

// HTML renders a chapter as an HTML fragment. It is the intermediate text
// handed to language models and the output of dry runs.
type HTML struct{}

// NewHTML creates the intermediate renderer.
func NewHTML() *HTML {
	return &HTML{}
}

// Name implements Renderer.
func (h *HTML) Name() string { return "html" }

// Render implements Renderer.
func (h *HTML) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	nodes, err := htmlBlocks(ch.Blocks)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func appendAll(parent *html.Node, children []*html.Node) *html.Node {
	for _, c := range children {
		parent.AppendChild(c)
	}
	return parent
}

func htmlBlocks(blocks []ir.Block) ([]*html.Node, error) {
	nodes := make([]*html.Node, 0, len(blocks))
	for i := range blocks {
		n, err := htmlBlock(&blocks[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func htmlBlock(b *ir.Block) (*html.Node, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBlock, err)
	}
	switch b.Type {
	case ir.BlockTypeHeading:
		h := element(headingAtoms[ir.ClampLevel(b.Heading.Level)-1])
		return appendAll(h, htmlInlines(b.Heading.Inlines)), nil
	case ir.BlockTypeParagraph:
		return appendAll(element(atom.P), htmlInlines(b.Paragraph.Inlines)), nil
	case ir.BlockTypeList:
		return htmlList(b.List)
	case ir.BlockTypeTable:
		return htmlTable(b.Table)
	case ir.BlockTypeImage:
		return htmlImage(b.Image), nil
	case ir.BlockTypeCode:
		code := element(atom.Code)
		if b.Code.Language != "" {
			code.Attr = append(code.Attr, attr("class", "language-"+b.Code.Language))
		}
		code.AppendChild(textNode(b.Code.Text))
		pre := element(atom.Pre)
		pre.AppendChild(code)
		return pre, nil
	case ir.BlockTypeQuote:
		children, err := htmlBlocks(b.Quote.Blocks)
		if err != nil {
			return nil, err
		}
		return appendAll(element(atom.Blockquote), children), nil
	case ir.BlockTypeThematicBreak:
		return element(atom.Hr), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedBlock, b.Type)
}

func htmlList(l *ir.ListBlock) (*html.Node, error) {
	list := element(atom.Ul)
	if l.Ordered {
		list = element(atom.Ol)
		if l.Start > 1 {
			list.Attr = append(list.Attr, attr("start", strconv.Itoa(l.Start)))
		}
	}
	for _, it := range l.Items {
		children, err := htmlFlow(it.Blocks)
		if err != nil {
			return nil, err
		}
		list.AppendChild(appendAll(element(atom.Li), children))
	}
	return list, nil
}

// htmlFlow renders a container's blocks; a lone paragraph is unwrapped.
func htmlFlow(blocks []ir.Block) ([]*html.Node, error) {
	if len(blocks) == 1 && blocks[0].Type == ir.BlockTypeParagraph && blocks[0].Paragraph != nil {
		return htmlInlines(blocks[0].Paragraph.Inlines), nil
	}
	return htmlBlocks(blocks)
}

func htmlTable(t *ir.TableBlock) (*html.Node, error) {
	table := element(atom.Table)
	if t.Caption != "" {
		caption := element(atom.Caption)
		caption.AppendChild(textNode(t.Caption))
		table.AppendChild(caption)
	}
	body := element(atom.Tbody)
	for r, row := range t.Cells {
		tr := element(atom.Tr)
		header := t.HasHeader && r == 0
		for _, cell := range row {
			if cell.Merged {
				continue
			}
			cellAtom := atom.Td
			if header {
				cellAtom = atom.Th
			}
			td := element(cellAtom)
			if cell.ColSpan > 1 {
				td.Attr = append(td.Attr, attr("colspan", strconv.Itoa(cell.ColSpan)))
			}
			if cell.RowSpan > 1 {
				td.Attr = append(td.Attr, attr("rowspan", strconv.Itoa(cell.RowSpan)))
			}
			children, err := htmlFlow(cell.Blocks)
			if err != nil {
				return nil, err
			}
			tr.AppendChild(appendAll(td, children))
		}
		if header {
			thead := element(atom.Thead)
			thead.AppendChild(tr)
			table.AppendChild(thead)
			continue
		}
		body.AppendChild(tr)
	}
	if body.FirstChild != nil {
		table.AppendChild(body)
	}
	return table, nil
}

func htmlImage(img *ir.ImageBlock) *html.Node {
	n := element(atom.Img, attr("src", img.Path), attr("alt", img.Alt))
	if img.Width > 0 && img.Height > 0 {
		n.Attr = append(n.Attr, attr("width", strconv.Itoa(img.Width)), attr("height", strconv.Itoa(img.Height)))
	}
	if img.Missing {
		n.Attr = append(n.Attr, attr("data-missing", "true"))
	}
	if img.Caption == "" {
		return n
	}
	fig := element(atom.Figure)
	fig.AppendChild(n)
	caption := element(atom.Figcaption)
	caption.AppendChild(textNode(img.Caption))
	fig.AppendChild(caption)
	return fig
}

func htmlInlines(inlines []ir.Inline) []*html.Node {
	nodes := make([]*html.Node, 0, len(inlines))
	for _, in := range inlines {
		switch in.Type {
		case ir.InlineText:
			nodes = append(nodes, textNode(in.Text))
		case ir.InlineEmphasis:
			nodes = append(nodes, appendAll(element(atom.Em), htmlInlines(in.Children)))
		case ir.InlineStrong:
			nodes = append(nodes, appendAll(element(atom.Strong), htmlInlines(in.Children)))
		case ir.InlineCode:
			code := element(atom.Code)
			code.AppendChild(textNode(in.Text))
			nodes = append(nodes, code)
		case ir.InlineLink:
			a := appendAll(element(atom.A, attr("href", in.Href)), htmlInlines(in.Children))
			nodes = append(nodes, a)
		case ir.InlineLineBreak:
			nodes = append(nodes, element(atom.Br))
		default:
			nodes = append(nodes, textNode(in.Text))
		}
	}
	return nodes
}
