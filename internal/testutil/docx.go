// Package testutil builds small input documents for tests.
package testutil

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Heading returns a WordprocessingML paragraph with a built-in heading style.
func Heading(level int, text string) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:pStyle w:val="Heading%d"/></w:pPr><w:r><w:t>%s</w:t></w:r></w:p>`,
		level, html.EscapeString(text))
}

// Paragraph returns a plain body paragraph.
func Paragraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + html.EscapeString(text) + `</w:t></w:r></w:p>`
}

// DOCX writes a minimal package holding body as word/document.xml and
// returns its path.
func DOCX(t testing.TB, dir, name string, body ...string) string {
	t.Helper()
	document := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(body, "") + `</w:body></w:document>`

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	zf, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := zf.Write([]byte(document)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

// GuideDOCX writes a three-chapter document.
func GuideDOCX(t testing.TB, dir string) string {
	t.Helper()
	return DOCX(t, dir, "guide.docx",
		Heading(1, "Introduction"),
		Paragraph("Welcome to the guide."),
		Heading(2, "Scope"),
		Paragraph("What this covers."),
		Heading(1, "Setup"),
		Paragraph("Install the tool."),
		Heading(1, "Usage"),
		Paragraph("Run it."),
	)
}
