// Package docx provides a parser for Office Open XML word-processing
// documents (.docx).
package docx

import (
	"encoding/xml"
	"path"
	"strconv"
	"strings"

	"github.com/roboco-io/chaptermd/internal/ir"
)

// Well-known package parts.
const (
	partPackageRels = "_rels/.rels"
	partDocument    = "word/document.xml"
	partCore        = "docProps/core.xml"

	relOfficeDocument = "/officeDocument"
	relStyles         = "/styles"
	relNumbering      = "/numbering"
	relImage          = "/image"
	relHyperlink      = "/hyperlink"
)

type valAttr struct {
	Val string `xml:"val,attr"`
}

// Relationships maps relationship ids of one part to their targets.
type Relationships struct {
	Items []Relationship `xml:"Relationship"`
}

// Relationship is a single package relationship.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// ParseRelationships parses a .rels part.
func ParseRelationships(data []byte) (*Relationships, error) {
	var rels Relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, err
	}
	return &rels, nil
}

// ByID returns the relationship with the given id.
func (r *Relationships) ByID(id string) (Relationship, bool) {
	if r == nil {
		return Relationship{}, false
	}
	for _, rel := range r.Items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// ByType returns the first relationship whose type ends with suffix.
func (r *Relationships) ByType(suffix string) (Relationship, bool) {
	if r == nil {
		return Relationship{}, false
	}
	for _, rel := range r.Items {
		if strings.HasSuffix(rel.Type, suffix) {
			return rel, true
		}
	}
	return Relationship{}, false
}

// resolvePart turns a relationship target into a package part name
// relative to the directory of the source part.
func resolvePart(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(sourcePart), target)
}

// relsPart returns the name of the relationships part of part.
func relsPart(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// CoreProperties is the docProps/core.xml part.
type CoreProperties struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Creator     string `xml:"creator"`
	Keywords    string `xml:"keywords"`
	Description string `xml:"description"`
	Language    string `xml:"language"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

// ParseCoreProperties parses the core properties part.
func ParseCoreProperties(data []byte) (*CoreProperties, error) {
	var core CoreProperties
	if err := xml.Unmarshal(data, &core); err != nil {
		return nil, err
	}
	return &core, nil
}

// ToMetadata converts core properties to IR metadata.
func (c *CoreProperties) ToMetadata() ir.Metadata {
	return ir.Metadata{
		Title:       strings.TrimSpace(c.Title),
		Author:      strings.TrimSpace(c.Creator),
		Subject:     c.Subject,
		Keywords:    c.Keywords,
		Description: c.Description,
		Creator:     c.Creator,
		Created:     c.Created,
		Modified:    c.Modified,
		Locale:      c.Language,
	}
}

// styleKind classifies paragraph styles by their role in the document.
type styleKind int

const (
	styleBody styleKind = iota
	styleHeading
	styleTitle
	styleCode
	styleQuote
	styleCaption
	styleTOC
)

type styleInfo struct {
	kind  styleKind
	level int // heading level for styleHeading
}

// Styles resolves paragraph style ids.
type Styles struct {
	byID map[string]styleXML
}

type stylesXML struct {
	Styles []styleXML `xml:"style"`
}

type styleXML struct {
	Type    string  `xml:"type,attr"`
	ID      string  `xml:"styleId,attr"`
	Name    valAttr `xml:"name"`
	BasedOn valAttr `xml:"basedOn"`
	PPr     struct {
		OutlineLvl *valAttr `xml:"outlineLvl"`
	} `xml:"pPr"`
}

// ParseStyles parses the styles part.
func ParseStyles(data []byte) (*Styles, error) {
	var sx stylesXML
	if err := xml.Unmarshal(data, &sx); err != nil {
		return nil, err
	}
	s := &Styles{byID: make(map[string]styleXML, len(sx.Styles))}
	for _, st := range sx.Styles {
		if st.Type == "" || st.Type == "paragraph" {
			s.byID[st.ID] = st
		}
	}
	return s, nil
}

// Lookup classifies the paragraph style id. Unknown ids are classified by
// the id itself, which covers documents without a styles part.
func (s *Styles) Lookup(id string) styleInfo {
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; {
		seen[cur] = true
		st, ok := s.style(cur)
		name := cur
		if ok && st.Name.Val != "" {
			name = st.Name.Val
		}
		if info, ok := classify(name); ok {
			return info
		}
		if ok && st.PPr.OutlineLvl != nil {
			if lvl, err := strconv.Atoi(st.PPr.OutlineLvl.Val); err == nil && lvl < 9 {
				return styleInfo{kind: styleHeading, level: ir.ClampLevel(lvl + 1)}
			}
		}
		if !ok {
			break
		}
		cur = st.BasedOn.Val
	}
	return styleInfo{kind: styleBody}
}

func (s *Styles) style(id string) (styleXML, bool) {
	if s == nil {
		return styleXML{}, false
	}
	st, ok := s.byID[id]
	return st, ok
}

// classify maps built-in style names (and ids, which usually match them
// without spaces) to a kind.
func classify(name string) (styleInfo, bool) {
	n := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	switch {
	case strings.HasPrefix(n, "heading"):
		if lvl, err := strconv.Atoi(strings.TrimPrefix(n, "heading")); err == nil && lvl >= 1 {
			return styleInfo{kind: styleHeading, level: ir.ClampLevel(lvl)}, true
		}
	case n == "title":
		return styleInfo{kind: styleTitle}, true
	case strings.HasPrefix(n, "toc"):
		if _, err := strconv.Atoi(strings.TrimPrefix(n, "toc")); err == nil {
			return styleInfo{kind: styleTOC}, true
		}
	case n == "caption":
		return styleInfo{kind: styleCaption}, true
	case strings.Contains(n, "quote"):
		return styleInfo{kind: styleQuote}, true
	case strings.Contains(n, "code"), strings.Contains(n, "preformatted"),
		strings.Contains(n, "verbatim"), strings.Contains(n, "sourcetext"):
		return styleInfo{kind: styleCode}, true
	}
	return styleInfo{}, false
}

// Numbering resolves list definitions.
type Numbering struct {
	abstract map[string]map[int]numLevel
	nums     map[string]string // numId -> abstractNumId
}

type numLevel struct {
	format string
	start  int
}

type numberingXML struct {
	Abstract []struct {
		ID     string `xml:"abstractNumId,attr"`
		Levels []struct {
			Ilvl   int     `xml:"ilvl,attr"`
			Start  valAttr `xml:"start"`
			NumFmt valAttr `xml:"numFmt"`
		} `xml:"lvl"`
	} `xml:"abstractNum"`
	Nums []struct {
		ID       string  `xml:"numId,attr"`
		Abstract valAttr `xml:"abstractNumId"`
	} `xml:"num"`
}

// ParseNumbering parses the numbering part.
func ParseNumbering(data []byte) (*Numbering, error) {
	var nx numberingXML
	if err := xml.Unmarshal(data, &nx); err != nil {
		return nil, err
	}
	n := &Numbering{
		abstract: make(map[string]map[int]numLevel, len(nx.Abstract)),
		nums:     make(map[string]string, len(nx.Nums)),
	}
	for _, a := range nx.Abstract {
		levels := make(map[int]numLevel, len(a.Levels))
		for _, l := range a.Levels {
			start, err := strconv.Atoi(l.Start.Val)
			if err != nil {
				start = 1
			}
			levels[l.Ilvl] = numLevel{format: l.NumFmt.Val, start: start}
		}
		n.abstract[a.ID] = levels
	}
	for _, num := range nx.Nums {
		n.nums[num.ID] = num.Abstract.Val
	}
	return n, nil
}

// Ordered reports whether level ilvl of list numID is numbered, and its
// start value. Lists without a definition are bulleted.
func (n *Numbering) Ordered(numID string, ilvl int) (ordered bool, start int) {
	if n == nil {
		return false, 1
	}
	lvl, ok := n.abstract[n.nums[numID]][ilvl]
	if !ok {
		return false, 1
	}
	switch lvl.format {
	case "", "bullet", "none":
		return false, 1
	}
	return true, lvl.start
}
