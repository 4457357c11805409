package output

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roboco-io/chaptermd/internal/assets"
)

// ChapterOutput is the final artifact of one chapter.
type ChapterOutput struct {
	Ordinal  int
	Title    string
	Slug     string
	File     string // relative to the output root
	Text     string
	Assets   []string // relative to the output root, in order of first use
	Renderer string
	Degraded bool
	Warnings []string
	Blocks   int
}

// FrontMatter is the YAML header of a chapter file.
type FrontMatter struct {
	Title   string `yaml:"title"`
	Chapter int    `yaml:"chapter"`
	Slug    string `yaml:"slug"`
	Source  string `yaml:"source,omitempty"`
	Locale  string `yaml:"locale,omitempty"`
}

// Link points at a neighbouring file.
type Link struct {
	Title string
	File  string // relative to the chapter's directory
}

// Nav is the navigation footer of a chapter file.
type Nav struct {
	Prev  *Link
	Index *Link
	Next  *Link
}

// Markdown renders the footer links on one line.
func (n *Nav) Markdown() string {
	var parts []string
	if n.Prev != nil {
		parts = append(parts, fmt.Sprintf("[← %s](%s)", linkText(n.Prev.Title), n.Prev.File))
	}
	if n.Index != nil {
		parts = append(parts, fmt.Sprintf("[%s](%s)", linkText(n.Index.Title), n.Index.File))
	}
	if n.Next != nil {
		parts = append(parts, fmt.Sprintf("[%s →](%s)", linkText(n.Next.Title), n.Next.File))
	}
	return strings.Join(parts, " | ")
}

// NavFor builds the footer of chapter i given every chapter's title and
// root-relative file.
func NavFor(outputs []ChapterOutput, i int, chaptersDir string) *Nav {
	local := func(o ChapterOutput) *Link {
		return &Link{Title: o.Title, File: path.Base(o.File)}
	}
	n := &Nav{Index: &Link{Title: "Contents", File: assets.RelativeTo(chaptersDir, IndexFile)}}
	if i > 0 {
		n.Prev = local(outputs[i-1])
	}
	if i+1 < len(outputs) {
		n.Next = local(outputs[i+1])
	}
	return n
}

// ChapterFile assembles the file text: optional front matter, the rendered
// body and an optional navigation footer.
func ChapterFile(fm *FrontMatter, body string, nav *Nav) (string, error) {
	var sb strings.Builder
	if fm != nil {
		data, err := yaml.Marshal(fm)
		if err != nil {
			return "", fmt.Errorf("marshal front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(data)
		sb.WriteString("---\n\n")
	}
	body = strings.TrimRight(body, "\n")
	if body != "" {
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	if nav != nil {
		if s := nav.Markdown(); s != "" {
			sb.WriteString("\n---\n\n")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

func linkText(s string) string {
	return linkTextEscaper.Replace(s)
}
