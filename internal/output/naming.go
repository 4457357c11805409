// Package output names and writes chapter files and builds the navigation
// artifacts (index document and manifest) of a run.
package output

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPattern is the default chapter file name pattern.
	DefaultPattern = "{ordinal}-{slug}.md"
	// DefaultChaptersDir holds chapter files below the output root.
	DefaultChaptersDir = "chapters"
	// IndexFile and ManifestFile are written last, at the output root.
	IndexFile    = "index.md"
	ManifestFile = "manifest.json"
)

// OrdinalWidth returns the zero-padding width for n chapters: at least two
// digits, more when the last ordinal needs them.
func OrdinalWidth(n int) int {
	if n < 1 {
		return 2
	}
	return max(2, len(strconv.Itoa(n-1)))
}

// FileName expands pattern for one chapter. {ordinal} becomes the
// zero-padded ordinal, {slug} the chapter slug.
func FileName(pattern string, ordinal, width int, slug string) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return strings.NewReplacer(
		"{ordinal}", fmt.Sprintf("%0*d", width, ordinal),
		"{slug}", slug,
	).Replace(pattern)
}

// ValidatePattern checks that pattern yields distinct names per chapter.
func ValidatePattern(pattern string) error {
	if !strings.Contains(pattern, "{ordinal}") && !strings.Contains(pattern, "{slug}") {
		return fmt.Errorf("pattern %q must contain {ordinal} or {slug}", pattern)
	}
	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("pattern %q must not contain path separators", pattern)
	}
	return nil
}
