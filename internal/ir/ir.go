// Package ir defines the intermediate representation shared by every stage
// of the conversion pipeline. Format adapters produce it, the normalizer
// rewrites it and the splitter, asset exporter and renderers consume it.
package ir

import (
	"errors"
	"fmt"
)

// Version is the schema version stamped on every new document.
const Version = "1.0"

// ErrInvalidBlock is returned when a block's populated variant does not
// match its declared type.
var ErrInvalidBlock = errors.New("invalid block")

// Document represents one parsed source document.
type Document struct {
	Version   string         `json:"version"`
	Metadata  Metadata       `json:"metadata"`
	Content   []Block        `json:"content"`
	Resources []*ResourceRef `json:"resources,omitempty"` // every payload the adapter extracted
}

// Metadata contains document metadata.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Description string `json:"description,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Created     string `json:"created,omitempty"`
	Modified    string `json:"modified,omitempty"`
	Locale      string `json:"locale,omitempty"`
	Source      string `json:"source,omitempty"` // base name of the input file
	Format      string `json:"format,omitempty"` // docx, pdf
}

// BlockType represents the type of content block.
type BlockType string

const (
	BlockTypeHeading       BlockType = "heading"
	BlockTypeParagraph     BlockType = "paragraph"
	BlockTypeList          BlockType = "list"
	BlockTypeTable         BlockType = "table"
	BlockTypeImage         BlockType = "image"
	BlockTypeCode          BlockType = "code"
	BlockTypeQuote         BlockType = "quote"
	BlockTypeThematicBreak BlockType = "thematic_break"
)

// Block represents a content block in the document. Exactly one variant
// pointer is set, matching Type. Thematic breaks carry no payload.
type Block struct {
	Type      BlockType   `json:"type"`
	Heading   *Heading    `json:"heading,omitempty"`
	Paragraph *Paragraph  `json:"paragraph,omitempty"`
	List      *ListBlock  `json:"list,omitempty"`
	Table     *TableBlock `json:"table,omitempty"`
	Image     *ImageBlock `json:"image,omitempty"`
	Code      *CodeBlock  `json:"code,omitempty"`
	Quote     *QuoteBlock `json:"quote,omitempty"`
}

// NewDocument creates a new IR document with the current version.
func NewDocument() *Document {
	return &Document{
		Version: Version,
		Content: make([]Block, 0),
	}
}

// Append adds blocks to the end of the document.
func (d *Document) Append(blocks ...Block) {
	d.Content = append(d.Content, blocks...)
}

// AddHeading adds a heading block to the document.
func (d *Document) AddHeading(h *Heading) {
	d.Append(h.Block())
}

// AddParagraph adds a paragraph block to the document.
func (d *Document) AddParagraph(p *Paragraph) {
	d.Append(p.Block())
}

// AddTable adds a table block to the document.
func (d *Document) AddTable(t *TableBlock) {
	d.Append(t.Block())
}

// AddImage adds an image block to the document and registers its resource.
func (d *Document) AddImage(img *ImageBlock) {
	d.AddResource(img.Ref)
	d.Append(img.Block())
}

// AddResource registers an extracted payload once.
func (d *Document) AddResource(ref *ResourceRef) {
	if ref == nil {
		return
	}
	for _, r := range d.Resources {
		if r == ref {
			return
		}
	}
	d.Resources = append(d.Resources, ref)
}

// AddList adds a list block to the document.
func (d *Document) AddList(l *ListBlock) {
	d.Append(l.Block())
}

// AddCode adds a code block to the document.
func (d *Document) AddCode(c *CodeBlock) {
	d.Append(c.Block())
}

// AddQuote adds a block quote to the document.
func (d *Document) AddQuote(q *QuoteBlock) {
	d.Append(q.Block())
}

// AddThematicBreak adds a thematic break to the document.
func (d *Document) AddThematicBreak() {
	d.Append(ThematicBreak())
}

// IsEmpty reports whether the document has no content blocks.
func (d *Document) IsEmpty() bool {
	return d == nil || len(d.Content) == 0
}

// Clone returns a deep copy of the document. Resource references are
// shared, since their payloads are immutable.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Version:   d.Version,
		Metadata:  d.Metadata,
		Resources: d.Resources,
	}
	out.Content = CloneBlocks(d.Content)
	return out
}

// Validate checks that every block, recursively, carries the variant its
// type declares.
func (d *Document) Validate() error {
	var err error
	Walk(d.Content, func(b *Block) bool {
		if err == nil {
			err = b.Validate()
		}
		return err == nil
	})
	return err
}

// ThematicBreak returns a thematic break block.
func ThematicBreak() Block {
	return Block{Type: BlockTypeThematicBreak}
}

// Validate checks that the block's variant matches its type.
func (b *Block) Validate() error {
	ok := false
	switch b.Type {
	case BlockTypeHeading:
		ok = b.Heading != nil
	case BlockTypeParagraph:
		ok = b.Paragraph != nil
	case BlockTypeList:
		ok = b.List != nil
	case BlockTypeTable:
		ok = b.Table != nil
	case BlockTypeImage:
		ok = b.Image != nil
	case BlockTypeCode:
		ok = b.Code != nil
	case BlockTypeQuote:
		ok = b.Quote != nil
	case BlockTypeThematicBreak:
		ok = true
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidBlock, b.Type)
	}
	if !ok {
		return fmt.Errorf("%w: %s block without payload", ErrInvalidBlock, b.Type)
	}
	return nil
}

// PlainText returns the text content of the block with markup removed.
func (b *Block) PlainText() string {
	switch b.Type {
	case BlockTypeHeading:
		return PlainText(b.Heading.Inlines)
	case BlockTypeParagraph:
		return PlainText(b.Paragraph.Inlines)
	case BlockTypeCode:
		return b.Code.Text
	case BlockTypeImage:
		return b.Image.Alt
	case BlockTypeList:
		return blocksText(b.List.allBlocks())
	case BlockTypeQuote:
		return blocksText(b.Quote.Blocks)
	case BlockTypeTable:
		return blocksText(b.Table.allBlocks())
	}
	return ""
}
