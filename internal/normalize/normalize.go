// Package normalize canonicalizes documents coming from different parser
// back ends. Normalization is an ordered chain of passes over a private copy
// of the document; it never fails and performs no I/O.
package normalize

import (
	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
)

// Stage is the diagnostics stage name for normalizer findings.
const Stage = "normalize"

// Pass is a single normalization step. It mutates the document it is given
// and may report findings.
type Pass interface {
	Name() string
	Apply(doc *ir.Document, d *diag.List)
}

// Options configures which passes run.
type Options struct {
	StripTOC bool
}

// DefaultOptions returns the options used by Normalize.
func DefaultOptions() Options {
	return Options{StripTOC: true}
}

// Normalizer runs passes in sequence.
type Normalizer struct {
	passes []Pass
}

// New creates a normalizer with the default chain for opts.
func New(opts Options) *Normalizer {
	passes := []Pass{
		NFCText(),
		MergeInlines(),
		RepairTables(),
		DropEmpty(),
	}
	if opts.StripTOC {
		passes = append(passes, StripLeadingTOC())
	}
	passes = append(passes, HeadingLevels())
	return &Normalizer{passes: passes}
}

// NewWithPasses creates a normalizer running exactly the given passes.
func NewWithPasses(passes ...Pass) *Normalizer {
	return &Normalizer{passes: passes}
}

// Normalize runs the default chain over doc.
func Normalize(doc *ir.Document) (*ir.Document, []diag.Entry) {
	return New(DefaultOptions()).Run(doc)
}

// Run applies every pass to a copy of doc and returns the copy together with
// the findings. The input document is left untouched.
func (n *Normalizer) Run(doc *ir.Document) (*ir.Document, []diag.Entry) {
	if doc == nil {
		return ir.NewDocument(), nil
	}
	out := doc.Clone()
	var d diag.List
	for _, p := range n.passes {
		p.Apply(out, &d)
	}
	return out, d.Entries()
}

// Passes returns the pass names in execution order.
func (n *Normalizer) Passes() []string {
	names := make([]string, len(n.passes))
	for i, p := range n.passes {
		names[i] = p.Name()
	}
	return names
}

type passFunc struct {
	name string
	fn   func(doc *ir.Document, d *diag.List)
}

func (p passFunc) Name() string                         { return p.name }
func (p passFunc) Apply(doc *ir.Document, d *diag.List) { p.fn(doc, d) }

// forEachInlines calls fn for every inline sequence in blocks, recursively.
func forEachInlines(blocks []ir.Block, fn func(in []ir.Inline) []ir.Inline) {
	ir.Walk(blocks, func(b *ir.Block) bool {
		switch b.Type {
		case ir.BlockTypeHeading:
			b.Heading.Inlines = fn(b.Heading.Inlines)
		case ir.BlockTypeParagraph:
			b.Paragraph.Inlines = fn(b.Paragraph.Inlines)
		}
		return true
	})
}
