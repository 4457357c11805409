package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/roboco-io/chaptermd/internal/assets"
)

// SingleH1 expects exactly one H1 and, when front matter names a title,
// that the H1 repeats it.
type SingleH1 struct{}

func (SingleH1) Name() string { return "single-h1" }

func (r SingleH1) Check(src *Source) []Finding {
	var h1s []*ast.Heading
	walkHeadings(src.Root, func(h *ast.Heading) {
		if h.Level == 1 {
			h1s = append(h1s, h)
		}
	})
	switch {
	case len(h1s) == 0:
		return []Finding{{Rule: r.Name(), Message: "missing H1 heading"}}
	case len(h1s) > 1:
		out := make([]Finding, 0, len(h1s)-1)
		for _, h := range h1s[1:] {
			out = append(out, Finding{Rule: r.Name(), Line: src.NodeLine(h), Message: "multiple H1 headings"})
		}
		return out
	}
	got := headingText(h1s[0], src.Body)
	if src.Title != "" && got != strings.TrimSpace(src.Title) {
		return []Finding{{
			Rule:    r.Name(),
			Line:    src.NodeLine(h1s[0]),
			Message: fmt.Sprintf("H1 %q does not match title %q", got, src.Title),
		}}
	}
	return nil
}

// HeadingJumps flags headings that skip levels, such as H2 followed by H4.
type HeadingJumps struct{}

func (HeadingJumps) Name() string { return "heading-jump" }

func (r HeadingJumps) Check(src *Source) []Finding {
	var out []Finding
	prev := 0
	walkHeadings(src.Root, func(h *ast.Heading) {
		if prev > 0 && h.Level > prev+1 {
			out = append(out, Finding{
				Rule:    r.Name(),
				Line:    src.NodeLine(h),
				Message: fmt.Sprintf("heading level jumps from H%d to H%d", prev, h.Level),
			})
		}
		prev = h.Level
	})
	return out
}

var atxHeading = regexp.MustCompile(`^ {0,3}#{1,6}(\s|$)`)

// HeadingSpacing expects a blank line after every ATX heading.
type HeadingSpacing struct{}

func (HeadingSpacing) Name() string { return "heading-spacing" }

func (r HeadingSpacing) Check(src *Source) []Finding {
	var out []Finding
	lines := strings.Split(string(src.Body), "\n")
	forEachOutsideFences(lines, func(i int, line string) {
		if !atxHeading.MatchString(line) || i+1 >= len(lines) {
			return
		}
		if strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, Finding{
				Rule:    r.Name(),
				Line:    src.bodyLine + i + 1,
				Message: "missing blank line after heading",
			})
		}
	})
	return out
}

var fenceOpen = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

// CodeFences flags a code fence that is never closed.
type CodeFences struct{}

func (CodeFences) Name() string { return "code-fence" }

func (r CodeFences) Check(src *Source) []Finding {
	lines := strings.Split(string(src.Body), "\n")
	open, at := "", 0
	for i, line := range lines {
		m := fenceOpen.FindStringSubmatch(line)
		switch {
		case open == "" && m != nil:
			open, at = m[1], i
		case open != "" && m != nil && closesFence(line, open):
			open = ""
		}
	}
	if open == "" {
		return nil
	}
	return []Finding{{Rule: r.Name(), Line: src.bodyLine + at + 1, Message: "code fence is never closed"}}
}

var tableCaption = regexp.MustCompile(`^(Table|Таблица)\s+\d+\s*[.:–—-]\s*\S`)

// TableCaptions checks that a caption following a table and naming itself
// a table is numbered, as in "Table 3: Prices".
type TableCaptions struct{}

func (TableCaptions) Name() string { return "table-caption" }

func (r TableCaptions) Check(src *Source) []Finding {
	var out []Finding
	for n := src.Root.FirstChild(); n != nil; n = n.NextSibling() {
		if _, ok := n.(*extast.Table); !ok {
			continue
		}
		p, ok := n.NextSibling().(*ast.Paragraph)
		if !ok {
			continue
		}
		caption := inlineText(p, src.Body)
		word, _, _ := strings.Cut(caption, " ")
		if word != "Table" && word != "Таблица" {
			continue
		}
		if !tableCaption.MatchString(caption) {
			out = append(out, Finding{
				Rule:    r.Name(),
				Line:    src.NodeLine(p),
				Message: fmt.Sprintf("table caption %q is not numbered", caption),
			})
		}
	}
	return out
}

// ImageTargets flags images without a target or pointing at an asset that
// could not be exported.
type ImageTargets struct{}

func (ImageTargets) Name() string { return "image-target" }

func (r ImageTargets) Check(src *Source) []Finding {
	var out []Finding
	_ = ast.Walk(src.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		img, ok := n.(*ast.Image)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		switch {
		case strings.TrimSpace(dest) == "":
			out = append(out, Finding{Rule: r.Name(), Line: src.NodeLine(img), Message: "image has no target"})
		case strings.HasPrefix(dest, assets.PlaceholderPrefix):
			out = append(out, Finding{
				Rule:    r.Name(),
				Line:    src.NodeLine(img),
				Message: fmt.Sprintf("image refers to missing asset %s", strings.TrimPrefix(dest, assets.PlaceholderPrefix)),
			})
		}
		return ast.WalkContinue, nil
	})
	return out
}

func walkHeadings(root ast.Node, fn func(*ast.Heading)) {
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			fn(h)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

var escapedPunct = regexp.MustCompile("\\\\([!-/:-@\\[-`{-~])")

func headingText(h *ast.Heading, source []byte) string {
	t := escapedPunct.ReplaceAllString(string(h.Text(source)), "$1")
	return strings.Join(strings.Fields(t), " ")
}

// inlineText flattens the text segments below n, dropping emphasis and
// other markup.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	t := escapedPunct.ReplaceAllString(sb.String(), "$1")
	return strings.Join(strings.Fields(t), " ")
}

func forEachOutsideFences(lines []string, fn func(i int, line string)) {
	open := ""
	for i, line := range lines {
		if m := fenceOpen.FindStringSubmatch(line); m != nil {
			if open == "" {
				open = m[1]
				continue
			}
			if closesFence(line, open) {
				open = ""
				continue
			}
		}
		if open == "" {
			fn(i, line)
		}
	}
}

// closesFence reports whether line closes a fence opened with open: same
// character, at least as long, nothing else on the line.
func closesFence(line, open string) bool {
	t := strings.TrimSpace(line)
	if len(t) < len(open) || t[0] != open[0] {
		return false
	}
	return strings.Trim(t, open[:1]) == ""
}
