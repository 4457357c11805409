package output

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roboco-io/chaptermd/internal/assets"
	"github.com/roboco-io/chaptermd/internal/diag"
)

// IndexMeta is the YAML header of the index document.
type IndexMeta struct {
	Title    string `yaml:"title"`
	Source   string `yaml:"source,omitempty"`
	Author   string `yaml:"author,omitempty"`
	Locale   string `yaml:"locale,omitempty"`
	Chapters int    `yaml:"chapters"`
}

// BuildIndex renders the index document: a YAML metadata header and an
// ordered list linking every chapter in reading order. Degraded chapters
// are marked. The header does not depend on the chapter front matter
// setting.
func BuildIndex(meta IndexMeta, chapters []ChapterOutput) (string, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal index metadata: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(data)
	sb.WriteString("---\n\n")
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = "Contents"
	}
	fmt.Fprintf(&sb, "# %s\n", title)
	if len(chapters) > 0 {
		sb.WriteString("\n")
	}
	for i, ch := range chapters {
		fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, linkText(ch.Title), escapeDest(ch.File))
		if ch.Degraded {
			sb.WriteString(" *(degraded)*")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

var destEscaper = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E")

func escapeDest(p string) string {
	return destEscaper.Replace(path.Clean(p))
}

// Finalize builds both navigation artifacts from in-memory results. The
// manifest is validated against its schema before it is returned; nothing
// is read back from disk.
func Finalize(doc DocumentInfo, params Parameters, generator string, chapters []ChapterOutput, store *assets.Store, diags []diag.Entry) (index string, manifest []byte, m *Manifest, err error) {
	index, err = BuildIndex(IndexMeta{
		Title:    doc.Title,
		Source:   doc.Source,
		Author:   doc.Author,
		Locale:   doc.Locale,
		Chapters: len(chapters),
	}, chapters)
	if err != nil {
		return "", nil, nil, err
	}
	m = BuildManifest(doc, params, generator, chapters, store, diags)
	manifest, err = m.Marshal()
	if err != nil {
		return "", nil, nil, err
	}
	if err := ValidateManifest(manifest); err != nil {
		return "", nil, nil, err
	}
	return index, manifest, m, nil
}
