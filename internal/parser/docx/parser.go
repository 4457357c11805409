package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/parser"
)

// ErrNoDocument is returned for packages without a main document part.
var ErrNoDocument = errors.New("package has no main document part")

func init() {
	parser.Register(parser.FormatDOCX, func(path string, opts parser.Options) (parser.Parser, error) {
		return New(path, opts)
	})
}

// Parser parses DOCX documents.
type Parser struct {
	path    string
	reader  *zip.ReadCloser
	files   map[string]*zip.File
	options parser.Options

	// Parsed package parts
	document  string
	rels      *Relationships
	styles    *Styles
	numbering *Numbering
	core      *CoreProperties

	resources []*ir.ResourceRef
	refs      map[string]*ir.ResourceRef // part name -> shared reference
	title     string                     // first Title-styled paragraph
}

// New creates a new DOCX parser for the given file path.
func New(path string, opts parser.Options) (*Parser, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX file: %w", err)
	}

	p := &Parser{
		path:    path,
		reader:  r,
		files:   make(map[string]*zip.File, len(r.File)),
		options: opts,
		refs:    make(map[string]*ir.ResourceRef),
	}
	for _, f := range r.File {
		p.files[strings.TrimPrefix(f.Name, "/")] = f
	}

	if err := p.parsePackage(); err != nil {
		r.Close()
		return nil, err
	}
	return p, nil
}

// Parse implements the Parser interface.
func (p *Parser) Parse() (*ir.Document, error) {
	doc := ir.NewDocument()
	if p.core != nil {
		doc.Metadata = p.core.ToMetadata()
	}

	rc, err := p.open(p.document)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	blocks, err := p.parseBody(xml.NewDecoder(rc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.document, err)
	}
	doc.Append(blocks...)
	for _, ref := range p.resources {
		doc.AddResource(ref)
	}

	if doc.Metadata.Title == "" {
		doc.Metadata.Title = p.title
	}
	doc.Metadata.Source = filepath.Base(p.path)
	doc.Metadata.Format = parser.FormatDOCX.String()
	if doc.Metadata.Locale == "" {
		doc.Metadata.Locale = p.options.Locale
	}
	return doc, nil
}

// Close releases resources.
func (p *Parser) Close() error {
	if p.reader != nil {
		return p.reader.Close()
	}
	return nil
}

// parsePackage locates the main document through the package
// relationships and loads the parts it depends on. Styles, numbering and
// core properties are optional.
func (p *Parser) parsePackage() error {
	p.document = partDocument
	if data, err := p.readPart(partPackageRels); err == nil {
		if rels, err := ParseRelationships(data); err == nil {
			if rel, ok := rels.ByType(relOfficeDocument); ok {
				p.document = resolvePart("", rel.Target)
			}
		}
	}
	if _, ok := p.files[p.document]; !ok {
		return fmt.Errorf("%w: %s", ErrNoDocument, p.document)
	}

	if data, err := p.readPart(relsPart(p.document)); err == nil {
		rels, err := ParseRelationships(data)
		if err != nil {
			return fmt.Errorf("failed to parse document relationships: %w", err)
		}
		p.rels = rels
	}
	if rel, ok := p.rels.ByType(relStyles); ok {
		if data, err := p.readPart(resolvePart(p.document, rel.Target)); err == nil {
			p.styles, _ = ParseStyles(data)
		}
	}
	if rel, ok := p.rels.ByType(relNumbering); ok {
		if data, err := p.readPart(resolvePart(p.document, rel.Target)); err == nil {
			p.numbering, _ = ParseNumbering(data)
		}
	}
	if data, err := p.readPart(partCore); err == nil {
		p.core, _ = ParseCoreProperties(data)
	}
	return nil
}

func (p *Parser) open(name string) (io.ReadCloser, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part not found: %s", name)
	}
	return f.Open()
}

func (p *Parser) readPart(name string) ([]byte, error) {
	rc, err := p.open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resource returns the shared reference for an embedded part, reading its
// payload once. Unreadable parts yield a reference without data, which the
// exporter reports as a placeholder.
func (p *Parser) resource(part string) *ir.ResourceRef {
	if ref, ok := p.refs[part]; ok {
		return ref
	}
	data, err := p.readPart(part)
	if err != nil {
		data = nil
	}
	ref := ir.NewResource(part, mime.TypeByExtension(strings.ToLower(path.Ext(part))), data)
	ref.Name = path.Base(part)
	p.refs[part] = ref
	p.resources = append(p.resources, ref)
	return ref
}

// hyperlink resolves a w:hyperlink target.
func (p *Parser) hyperlink(relID, anchor string) string {
	if anchor != "" {
		return "#" + anchor
	}
	if rel, ok := p.rels.ByID(relID); ok {
		return rel.Target
	}
	return ""
}

// image builds an image block for a blip or imagedata relationship.
func (p *Parser) image(d *drawing) *ir.ImageBlock {
	rel, ok := p.rels.ByID(d.relID)
	if !ok {
		return nil
	}
	var img *ir.ImageBlock
	if rel.External() {
		img = &ir.ImageBlock{Path: rel.Target}
	} else {
		img = ir.NewImage(p.resource(resolvePart(p.document, rel.Target)))
	}
	img.Alt = d.alt
	img.SetDimensions(d.width, d.height)
	return img
}
