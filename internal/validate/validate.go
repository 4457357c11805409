// Package validate checks rendered chapter Markdown for structural problems.
// Findings are advisory; they are reported with the chapter and never fail
// a run.
package validate

import (
	"bytes"
	"fmt"
	"slices"
	"sort"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Stage names validation diagnostics.
const Stage = "validate"

// Finding is one problem found in a chapter.
type Finding struct {
	Rule    string `json:"rule"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s (%s)", f.Line, f.Message, f.Rule)
	}
	return fmt.Sprintf("%s (%s)", f.Message, f.Rule)
}

// Validator checks one Markdown document.
type Validator interface {
	Validate(markdown []byte) []Finding
}

// Source is a parsed chapter handed to rules.
type Source struct {
	Raw   []byte
	Body  []byte
	Title string // front matter title, empty when absent
	Root  ast.Node

	bodyLine int // line of Raw where Body starts, zero based
}

// Line returns the 1-based line in Raw of a byte offset into Body.
func (s *Source) Line(offset int) int {
	if offset > len(s.Body) {
		offset = len(s.Body)
	}
	return s.bodyLine + bytes.Count(s.Body[:offset], []byte("\n")) + 1
}

// NodeLine returns the line of n, or of its closest block ancestor for
// inline nodes. Zero means unknown.
func (s *Source) NodeLine(n ast.Node) int {
	for p := n; p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			return s.Line(p.Lines().At(0).Start)
		}
	}
	return 0
}

// Rule is a single named check.
type Rule interface {
	Name() string
	Check(src *Source) []Finding
}

// Set runs a list of rules.
type Set struct {
	rules []Rule
	md    goldmark.Markdown
}

// New returns a set of the given rules.
func New(rules ...Rule) *Set {
	return &Set{
		rules: rules,
		md:    goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Default returns every built-in rule.
func Default() *Set {
	return New(
		SingleH1{},
		HeadingJumps{},
		HeadingSpacing{},
		CodeFences{},
		TableCaptions{},
		ImageTargets{},
	)
}

// Without returns a copy of s that skips the named rules.
func (s *Set) Without(names ...string) *Set {
	out := &Set{md: s.md}
	for _, r := range s.rules {
		if !slices.Contains(names, r.Name()) {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// Rules lists the rule names in run order.
func (s *Set) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate parses markdown and runs every rule. Findings are ordered by
// line, then rule.
func (s *Set) Validate(markdown []byte) []Finding {
	src, fm := s.parse(markdown)
	var out []Finding
	if fm != nil {
		out = append(out, *fm)
	}
	for _, r := range s.rules {
		out = append(out, r.Check(src)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

type frontMatter struct {
	Title string `yaml:"title"`
}

func (s *Set) parse(markdown []byte) (*Source, *Finding) {
	src := &Source{Raw: markdown, Body: markdown}
	var fmErr *Finding

	var meta frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(markdown), &meta)
	if err != nil {
		fmErr = &Finding{Rule: "front-matter", Line: 1, Message: fmt.Sprintf("unreadable front matter: %v", err)}
	} else {
		src.Title = meta.Title
		src.Body = body
		if bytes.HasSuffix(markdown, body) {
			src.bodyLine = bytes.Count(markdown[:len(markdown)-len(body)], []byte("\n"))
		}
	}
	src.Root = s.md.Parser().Parse(text.NewReader(src.Body))
	return src, fmErr
}
