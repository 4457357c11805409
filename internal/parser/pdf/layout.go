package pdf

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roboco-io/chaptermd/internal/ir"
)

var (
	numberedLine  = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){0,5})(\.?)\s+(\S.*)$`)
	chapterLine   = regexp.MustCompile(`(?i)^(chapter|part|appendix|глава|часть|раздел|приложение)\s+([0-9]+|[ivxlc]+|[a-zа-я])\b`)
	bulletLine    = regexp.MustCompile(`^[•·▪◦‣∙*–-]\s+(\S.*)$`)
	pageNumber    = regexp.MustCompile(`(?i)^(page\s+|стр\.?\s*)?\d+(\s*(of|из|/)\s*\d+)?$`)
	digitsPattern = regexp.MustCompile(`\d+`)
)

const (
	// maxHeadingRunes bounds the length of a line taken as a heading.
	maxHeadingRunes = 80
	// maxShortHeadingWords bounds "1. Title" headings, which otherwise read
	// as list items.
	maxShortHeadingWords = 6
	// minRunningPages is the page count from which repeated edge lines are
	// treated as running headers and footers.
	minRunningPages = 3
)

type lineKind int

const (
	lineText lineKind = iota
	lineBlank
	linePageBreak
	lineHeading
	lineBullet
	lineOrdered
)

type line struct {
	kind   lineKind
	text   string
	level  int // heading level
	number int // ordered item number
}

// Blocks recovers document structure from the plain text of each page.
func Blocks(pages []string) []ir.Block {
	return assemble(classify(stripRunning(pages)))
}

// stripRunning splits pages into trimmed lines and drops page numbers and
// running headers or footers: edge lines that repeat, digits aside, on
// more than half of the pages.
func stripRunning(pages []string) [][]string {
	split := make([][]string, len(pages))
	counts := make(map[string]int)
	for i, page := range pages {
		for _, l := range strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n") {
			split[i] = append(split[i], strings.TrimSpace(l))
		}
		for _, edge := range edgeLines(split[i]) {
			counts[runningKey(split[i][edge])]++
		}
	}

	running := make(map[string]bool)
	if len(pages) >= minRunningPages {
		for key, n := range counts {
			if n*2 > len(pages) {
				running[key] = true
			}
		}
	}

	for i, lines := range split {
		for _, edge := range edgeLines(lines) {
			if running[runningKey(lines[edge])] || pageNumber.MatchString(lines[edge]) {
				lines[edge] = ""
			}
		}
		split[i] = lines
	}
	return split
}

// edgeLines returns the indexes of the first and last non-empty lines.
func edgeLines(lines []string) []int {
	first, last := -1, -1
	for i, l := range lines {
		if l == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	switch {
	case first < 0:
		return nil
	case first == last:
		return []int{first}
	}
	return []int{first, last}
}

func runningKey(s string) string {
	return digitsPattern.ReplaceAllString(strings.ToLower(s), "#")
}

// classify labels each line. Runs of consecutively numbered short lines
// are lists, not headings.
func classify(pages [][]string) []line {
	var out []line
	for i, lines := range pages {
		if i > 0 {
			out = append(out, line{kind: linePageBreak})
		}
		for _, l := range lines {
			out = append(out, classifyLine(l))
		}
	}

	for i := range out {
		if out[i].kind != lineHeading || out[i].number == 0 {
			continue
		}
		next := nextContent(out, i)
		prev := prevItem(out, i)
		if (next >= 0 && out[next].number == out[i].number+1 && out[next].kind != lineText) ||
			(prev >= 0 && out[prev].kind == lineOrdered && out[prev].number == out[i].number-1) {
			out[i].kind = lineOrdered
			out[i].level = 0
			out[i].text = numberedLine.FindStringSubmatch(out[i].text)[3]
		}
	}
	return out
}

func classifyLine(l string) line {
	if l == "" {
		return line{kind: lineBlank}
	}
	if m := bulletLine.FindStringSubmatch(l); m != nil {
		return line{kind: lineBullet, text: m[1]}
	}
	if chapterLine.MatchString(l) && headingShaped(l) {
		return line{kind: lineHeading, text: l, level: 1}
	}
	if m := numberedLine.FindStringSubmatch(l); m != nil {
		parts := strings.Split(m[1], ".")
		title := m[3]
		n, _ := strconv.Atoi(parts[0])
		if len(parts) > 1 && headingShaped(title) {
			return line{kind: lineHeading, text: l, level: ir.ClampLevel(len(parts))}
		}
		if len(parts) == 1 && headingShaped(title) && len(strings.Fields(title)) <= maxShortHeadingWords {
			return line{kind: lineHeading, text: l, level: 1, number: n}
		}
		if len(parts) == 1 && m[2] == "." {
			return line{kind: lineOrdered, text: title, number: n}
		}
	}
	return line{kind: lineText, text: l}
}

// headingShaped reports whether s is short, starts with an upper-case
// letter and does not end like a sentence.
func headingShaped(s string) bool {
	if utf8.RuneCountInString(s) > maxHeadingRunes {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(r) {
		return false
	}
	switch s[len(s)-1] {
	case '.', ',', ';', ':':
		return false
	}
	return true
}

func nextContent(lines []line, i int) int {
	for j := i + 1; j < len(lines); j++ {
		if lines[j].kind != lineBlank && lines[j].kind != linePageBreak {
			return j
		}
	}
	return -1
}

// prevItem returns the closest preceding structural line, skipping the
// continuation text of a wrapped list item.
func prevItem(lines []line, i int) int {
	for j := i - 1; j >= 0; j-- {
		switch lines[j].kind {
		case lineBlank, linePageBreak, lineText:
			continue
		}
		return j
	}
	return -1
}

// assembler accumulates paragraph and list lines into blocks.
type assembler struct {
	out  []ir.Block
	para []string
	list *ir.ListBlock
	item []string
}

func assemble(lines []line) []ir.Block {
	a := &assembler{}
	for _, l := range lines {
		switch l.kind {
		case lineBlank:
			a.flush()
		case linePageBreak:
			// A paragraph continues across pages unless it ended a sentence.
			if n := len(a.para); n > 0 && endsSentence(a.para[n-1]) {
				a.flushParagraph()
			}
		case lineHeading:
			a.flush()
			a.out = append(a.out, ir.NewHeading(l.level, l.text).Block())
		case lineBullet, lineOrdered:
			a.flushParagraph()
			a.addItem(l)
		default:
			if a.list != nil {
				a.item = append(a.item, l.text)
				continue
			}
			a.para = append(a.para, l.text)
		}
	}
	a.flush()
	return a.out
}

func (a *assembler) addItem(l line) {
	ordered := l.kind == lineOrdered
	if a.list != nil && a.list.Ordered != ordered {
		a.flushList()
	}
	a.flushItem()
	if a.list == nil {
		a.list = ir.NewList(ordered)
		if ordered && l.number > 0 {
			a.list.Start = l.number
		}
	}
	a.item = []string{l.text}
}

func (a *assembler) flushItem() {
	if len(a.item) > 0 && a.list != nil {
		a.list.AddItem(joinLines(a.item))
	}
	a.item = nil
}

func (a *assembler) flushList() {
	a.flushItem()
	if a.list != nil {
		a.out = append(a.out, a.list.Block())
	}
	a.list = nil
}

func (a *assembler) flushParagraph() {
	if len(a.para) > 0 {
		a.out = append(a.out, ir.NewParagraph(joinLines(a.para)).Block())
	}
	a.para = nil
}

func (a *assembler) flush() {
	a.flushList()
	a.flushParagraph()
}

// joinLines joins wrapped lines with spaces, undoing end-of-line
// hyphenation between letters.
func joinLines(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			if hyphenated(prev) && startsLower(l) {
				s := sb.String()
				sb.Reset()
				sb.WriteString(s[:len(s)-1])
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(l)
	}
	return sb.String()
}

func hyphenated(s string) bool {
	if !strings.HasSuffix(s, "-") || len(s) < 2 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:len(s)-1])
	return unicode.IsLetter(r)
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}

func endsSentence(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(".!?:;…", r)
}
