// Package parser defines the adapter contract that turns a source file into
// an ir.Document, detects input formats and dispatches to registered
// adapters.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roboco-io/chaptermd/internal/ir"
)

// Parser is the interface for document parsers.
type Parser interface {
	// Parse reads the document and returns an IR representation.
	Parse() (*ir.Document, error)

	// Close releases any resources held by the parser.
	Close() error
}

// Format represents a document format.
type Format int

const (
	FormatUnknown Format = iota
	FormatDOCX
	FormatPDF
	FormatCompound // OLE compound file: legacy .doc or encrypted OOXML
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatDOCX:
		return "docx"
	case FormatPDF:
		return "pdf"
	case FormatCompound:
		return "compound"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedFormat is returned for inputs no adapter handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEncrypted is returned for password-protected documents.
	ErrEncrypted = errors.New("document is encrypted")
	// ErrLegacyWord is returned for binary Word 97-2003 documents.
	ErrLegacyWord = errors.New("legacy Word binary format (.doc) is not supported; save the file as .docx")
)

var (
	magicZIP = []byte("PK\x03\x04")
	magicPDF = []byte("%PDF-")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat detects the document format from the file path.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".docm":
		return FormatDOCX
	case ".pdf":
		return FormatPDF
	case ".doc":
		return FormatCompound
	default:
		return FormatUnknown
	}
}

// DetectFormatFromReader detects the format by reading magic bytes.
func DetectFormatFromReader(r io.ReaderAt) (Format, error) {
	buf := make([]byte, 8)
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return FormatUnknown, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if n < 4 {
		return FormatUnknown, fmt.Errorf("file too small to detect format")
	}
	buf = buf[:n]

	switch {
	case bytes.HasPrefix(buf, magicZIP):
		return FormatDOCX, nil
	case bytes.HasPrefix(buf, magicPDF):
		return FormatPDF, nil
	case bytes.HasPrefix(buf, magicOLE):
		return FormatCompound, nil
	}
	return FormatUnknown, nil
}

// Options contains parser configuration options.
type Options struct {
	ExtractImages bool   // Whether to extract embedded images
	Locale        string // Locale recorded when the document declares none
}

// DefaultOptions returns default parser options.
func DefaultOptions() Options {
	return Options{
		ExtractImages: true,
	}
}

// Opener creates a parser for a file.
type Opener func(path string, opts Options) (Parser, error)

var (
	mu      sync.RWMutex
	openers = make(map[Format]Opener)
)

// Register installs the opener for a format, replacing any previous one.
func Register(format Format, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[format] = open
}

// Registered lists the formats with an opener.
func Registered() []Format {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Format, 0, len(openers))
	for f := range openers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Detect sniffs the file's magic bytes, falling back to its extension.
// Compound files are inspected and rejected with a precise reason.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	format, err := DetectFormatFromReader(f)
	if err != nil {
		return FormatUnknown, err
	}
	if format == FormatUnknown {
		format = DetectFormat(path)
	}
	if format == FormatCompound {
		return format, InspectCompound(f)
	}
	return format, nil
}

// Open detects the format of path and opens it with the registered adapter.
func Open(path string, opts Options) (Parser, Format, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, format, err
	}
	mu.RLock()
	open, ok := openers[format]
	mu.RUnlock()
	if !ok {
		return nil, format, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	p, err := open(path, opts)
	return p, format, err
}

// ParseFile opens, parses and closes path.
func ParseFile(path string, opts Options) (*ir.Document, error) {
	p, format, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	doc, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	if doc.Metadata.Source == "" {
		doc.Metadata.Source = filepath.Base(path)
	}
	if doc.Metadata.Format == "" {
		doc.Metadata.Format = format.String()
	}
	if doc.Metadata.Locale == "" {
		doc.Metadata.Locale = opts.Locale
	}
	return doc, nil
}
