package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/split"
)

// Markdown is the deterministic renderer. Rendering the same chapter twice
// yields identical text.
type Markdown struct{}

// NewMarkdown creates the deterministic renderer.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

// Name implements Renderer.
func (m *Markdown) Name() string { return "markdown" }

// Render implements Renderer.
func (m *Markdown) Render(ctx context.Context, ch *split.Chapter) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return RenderBlocks(ch.Blocks)
}

// RenderBlocks renders a block sequence as a Markdown document body.
func RenderBlocks(blocks []ir.Block) (string, error) {
	parts, err := renderBlocks(blocks)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

func renderBlocks(blocks []ir.Block) ([]string, error) {
	parts := make([]string, 0, len(blocks))
	for i := range blocks {
		s, err := renderBlock(&blocks[i])
		if err != nil {
			return nil, err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts, nil
}

func renderBlock(b *ir.Block) (string, error) {
	if err := b.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedBlock, err)
	}
	switch b.Type {
	case ir.BlockTypeHeading:
		return renderHeading(b.Heading), nil
	case ir.BlockTypeParagraph:
		return renderParagraph(b.Paragraph.Inlines), nil
	case ir.BlockTypeList:
		return renderList(b.List)
	case ir.BlockTypeTable:
		return renderTable(b.Table)
	case ir.BlockTypeImage:
		return renderImage(b.Image), nil
	case ir.BlockTypeCode:
		return renderCode(b.Code), nil
	case ir.BlockTypeQuote:
		return renderQuote(b.Quote)
	case ir.BlockTypeThematicBreak:
		return "---", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedBlock, b.Type)
}

func renderHeading(h *ir.Heading) string {
	marker := strings.Repeat("#", ir.ClampLevel(h.Level))
	text := singleLine(renderInlines(h.Inlines))
	if text == "" {
		return marker
	}
	if strings.HasSuffix(text, "#") {
		text = text[:len(text)-1] + `\#`
	}
	return marker + " " + text
}

func renderParagraph(inlines []ir.Inline) string {
	text := renderInlines(inlines)
	for strings.HasSuffix(text, hardBreak) {
		text = strings.TrimSuffix(text, hardBreak)
	}
	return escapeLineStarts(strings.TrimSpace(text))
}

func renderList(l *ir.ListBlock) (string, error) {
	start := l.Start
	if start <= 0 {
		start = 1
	}
	items := make([]string, 0, len(l.Items))
	for i, it := range l.Items {
		marker := "- "
		if l.Ordered {
			marker = fmt.Sprintf("%d. ", start+i)
		}
		body, err := renderItem(it.Blocks)
		if err != nil {
			return "", err
		}
		items = append(items, indent(marker, body))
	}
	return strings.Join(items, "\n"), nil
}

// renderItem joins an item's blocks; a nested list hugs the text above it.
func renderItem(blocks []ir.Block) (string, error) {
	var sb strings.Builder
	for i := range blocks {
		s, err := renderBlock(&blocks[i])
		if err != nil {
			return "", err
		}
		if s == "" {
			continue
		}
		if sb.Len() > 0 {
			if blocks[i].Type == ir.BlockTypeList {
				sb.WriteString("\n")
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func indent(marker, body string) string {
	pad := strings.Repeat(" ", len(marker))
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = strings.TrimRight(marker+line, " ")
		case line != "":
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func renderTable(t *ir.TableBlock) (string, error) {
	width := t.Width()
	if width == 0 || t.Rows() == 0 {
		return "", nil
	}
	lines := make([]string, 0, t.Rows()+1)
	for r, row := range t.Cells {
		cells := make([]string, width)
		for c := range cells {
			if c < len(row) {
				s, err := renderCell(&row[c])
				if err != nil {
					return "", err
				}
				cells[c] = s
			}
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if r == 0 {
			sep := make([]string, width)
			for c := range sep {
				sep[c] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	out := strings.Join(lines, "\n")
	if t.Caption != "" {
		out += "\n\n" + wrap("*", escapeText(singleLine(t.Caption)))
	}
	return out, nil
}

// renderCell flattens cell blocks onto one line, joining them with <br>.
func renderCell(c *ir.Cell) (string, error) {
	parts, err := renderBlocks(c.Blocks)
	if err != nil {
		return "", err
	}
	out := strings.Join(parts, "<br>")
	out = strings.ReplaceAll(out, hardBreak, "<br>")
	return strings.ReplaceAll(out, "\n", "<br>"), nil
}

func renderImage(img *ir.ImageBlock) string {
	out := "![" + escapeText(singleLine(img.Alt)) + "](" + linkDestination(img.Path) + ")"
	if img.Caption != "" {
		out += "\n\n" + wrap("*", escapeText(singleLine(img.Caption)))
	}
	return out
}

func renderCode(c *ir.CodeBlock) string {
	fence := strings.Repeat("`", max(3, longestRun(c.Text, '`')+1))
	text := strings.TrimRight(c.Text, "\n")
	return fence + c.Language + "\n" + text + "\n" + fence
}

func renderQuote(q *ir.QuoteBlock) (string, error) {
	parts, err := renderBlocks(q.Blocks)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.Join(parts, "\n\n"), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n"), nil
}

const hardBreak = "\\\n"

func renderInlines(inlines []ir.Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		writeInline(&sb, in)
	}
	return sb.String()
}

func writeInline(sb *strings.Builder, in ir.Inline) {
	switch in.Type {
	case ir.InlineText:
		sb.WriteString(escapeText(in.Text))
	case ir.InlineEmphasis:
		sb.WriteString(wrap("*", renderInlines(in.Children)))
	case ir.InlineStrong:
		sb.WriteString(wrap("**", renderInlines(in.Children)))
	case ir.InlineCode:
		sb.WriteString(codeSpan(in.Text))
	case ir.InlineLink:
		text := renderInlines(in.Children)
		if strings.TrimSpace(text) == "" {
			text = escapeText(in.Href)
		}
		sb.WriteString("[" + text + "](" + linkDestination(in.Href) + ")")
	case ir.InlineLineBreak:
		sb.WriteString(hardBreak)
	default:
		sb.WriteString(escapeText(in.Text))
		sb.WriteString(renderInlines(in.Children))
	}
}

// wrap surrounds s with marker, keeping edge whitespace outside so the
// delimiters stay flanking.
func wrap(marker, s string) string {
	core := strings.TrimSpace(s)
	if core == "" {
		return s
	}
	lead := s[:strings.Index(s, core)]
	trail := s[len(lead)+len(core):]
	return lead + marker + core + marker + trail
}

func codeSpan(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	fence := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}

func longestRun(s string, r rune) int {
	best, cur := 0, 0
	for _, c := range s {
		if c == r {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`|`, `\|`,
	`&`, `\&`,
	`~`, `\~`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

var destEscaper = strings.NewReplacer(
	" ", "%20",
	"(", "%28",
	")", "%29",
	"<", "%3C",
	">", "%3E",
)

func linkDestination(s string) string {
	return destEscaper.Replace(s)
}

var orderedStart = regexp.MustCompile(`^(\d+)([.)])`)

// escapeLineStarts neutralizes text that would open a heading, list, or
// setext underline at the start of a line.
func escapeLineStarts(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimLeft(line, " \t")
		switch {
		case line == "":
		case strings.ContainsRune("#+-=", rune(line[0])):
			line = `\` + line
		case orderedStart.MatchString(line):
			line = orderedStart.ReplaceAllString(line, `$1\$2`)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, hardBreak, " ")
	return strings.Join(strings.Fields(s), " ")
}
