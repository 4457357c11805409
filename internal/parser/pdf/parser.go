// Package pdf provides a parser for the text layer of PDF documents.
// Structure is recovered from line layout: numbered and "Chapter N" lines
// become headings, bullet and numbered runs become lists and everything
// else is joined into paragraphs. Embedded images are not extracted.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/parser"
)

func init() {
	parser.Register(parser.FormatPDF, func(path string, opts parser.Options) (parser.Parser, error) {
		return New(path, opts)
	})
}

// Parser parses PDF documents.
type Parser struct {
	path    string
	file    *os.File
	reader  *pdflib.Reader
	options parser.Options
}

// New opens the PDF at path.
func New(path string, opts parser.Options) (*Parser, error) {
	f, r, err := pdflib.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		if errors.Is(err, pdflib.ErrInvalidPassword) {
			return nil, fmt.Errorf("%w: %s", parser.ErrEncrypted, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	return &Parser{path: path, file: f, reader: r, options: opts}, nil
}

// Parse implements the Parser interface.
func (p *Parser) Parse() (*ir.Document, error) {
	pages, err := p.pages()
	if err != nil {
		return nil, err
	}

	doc := ir.NewDocument()
	doc.Metadata = p.metadata()
	doc.Append(Blocks(pages)...)
	return doc, nil
}

// Close releases resources.
func (p *Parser) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// pages extracts the plain text of every page, sharing decoded fonts
// between pages.
func (p *Parser) pages() ([]string, error) {
	fonts := make(map[string]*pdflib.Font)
	n := p.reader.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := p.reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// metadata reads the document information dictionary.
func (p *Parser) metadata() ir.Metadata {
	info := p.reader.Trailer().Key("Info")
	meta := ir.Metadata{
		Title:    strings.TrimSpace(info.Key("Title").Text()),
		Author:   strings.TrimSpace(info.Key("Author").Text()),
		Subject:  info.Key("Subject").Text(),
		Keywords: info.Key("Keywords").Text(),
		Creator:  info.Key("Creator").Text(),
		Created:  info.Key("CreationDate").Text(),
		Modified: info.Key("ModDate").Text(),
		Locale:   p.options.Locale,
		Source:   filepath.Base(p.path),
		Format:   parser.FormatPDF.String(),
	}
	if lang := p.reader.Trailer().Key("Root").Key("Lang").Text(); lang != "" {
		meta.Locale = lang
	}
	return meta
}
