package ir

import "strings"

// Heading represents a section heading.
type Heading struct {
	Level   int      `json:"level"` // 1-6
	Inlines []Inline `json:"inlines"`
}

// Paragraph represents a text paragraph.
type Paragraph struct {
	Inlines []Inline       `json:"inlines"`
	Style   ParagraphStyle `json:"style,omitempty"`
}

// ParagraphStyle contains paragraph-level styling hints.
type ParagraphStyle struct {
	Alignment string `json:"alignment,omitempty"` // left, center, right, justify
	StyleName string `json:"style_name,omitempty"`
}

// NewHeading creates a heading with a single text span. The level is
// clamped to 1-6.
func NewHeading(level int, text string) *Heading {
	return &Heading{
		Level:   ClampLevel(level),
		Inlines: textSpans(text),
	}
}

// Heading level bounds.
const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 6
)

// ClampLevel limits a heading level to 1-6.
func ClampLevel(level int) int {
	return min(max(level, MinHeadingLevel), MaxHeadingLevel)
}

// Text returns the heading text with markup removed.
func (h *Heading) Text() string {
	return PlainText(h.Inlines)
}

// Block wraps the heading in a Block.
func (h *Heading) Block() Block {
	return Block{Type: BlockTypeHeading, Heading: h}
}

// NewParagraph creates a new paragraph with the given text.
func NewParagraph(text string) *Paragraph {
	return &Paragraph{
		Inlines: textSpans(text),
	}
}

// NewParagraphInlines creates a paragraph from styled spans.
func NewParagraphInlines(inlines ...Inline) *Paragraph {
	return &Paragraph{Inlines: inlines}
}

// AddInline appends a span to the paragraph.
func (p *Paragraph) AddInline(in Inline) {
	p.Inlines = append(p.Inlines, in)
}

// Text returns the paragraph text with markup removed.
func (p *Paragraph) Text() string {
	return PlainText(p.Inlines)
}

// IsEmpty returns true if the paragraph has no visible text.
func (p *Paragraph) IsEmpty() bool {
	return strings.TrimSpace(p.Text()) == ""
}

// Block wraps the paragraph in a Block.
func (p *Paragraph) Block() Block {
	return Block{Type: BlockTypeParagraph, Paragraph: p}
}

// CodeBlock represents preformatted text.
type CodeBlock struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// NewCode creates a code block.
func NewCode(text, language string) *CodeBlock {
	return &CodeBlock{Text: text, Language: language}
}

// Block wraps the code block in a Block.
func (c *CodeBlock) Block() Block {
	return Block{Type: BlockTypeCode, Code: c}
}

// QuoteBlock represents a block quote.
type QuoteBlock struct {
	Blocks []Block `json:"blocks"`
}

// NewQuote creates a block quote around the given blocks.
func NewQuote(blocks ...Block) *QuoteBlock {
	return &QuoteBlock{Blocks: blocks}
}

// Block wraps the quote in a Block.
func (q *QuoteBlock) Block() Block {
	return Block{Type: BlockTypeQuote, Quote: q}
}

func textSpans(text string) []Inline {
	if text == "" {
		return make([]Inline, 0)
	}
	return []Inline{Text(text)}
}
