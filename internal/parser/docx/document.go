package docx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roboco-io/chaptermd/internal/ir"
)

// emuPerPixel converts DrawingML extents (EMU) to pixels at 96 dpi.
const emuPerPixel = 9525

// transparent elements wrap content without adding structure of their own.
var transparent = map[string]bool{
	"sdt":              true,
	"sdtContent":       true,
	"customXml":        true,
	"smartTag":         true,
	"ins":              true,
	"fldSimple":        true,
	"AlternateContent": true,
	"Choice":           true,
}

type onOff struct {
	Val *string `xml:"val,attr"`
}

func (o *onOff) on() bool {
	if o == nil {
		return false
	}
	if o.Val == nil {
		return true
	}
	switch strings.ToLower(*o.Val) {
	case "false", "0", "off", "none":
		return false
	}
	return true
}

type pPrXML struct {
	Style      valAttr  `xml:"pStyle"`
	OutlineLvl *valAttr `xml:"outlineLvl"`
	Jc         valAttr  `xml:"jc"`
	NumPr      *struct {
		Ilvl  valAttr `xml:"ilvl"`
		NumID valAttr `xml:"numId"`
	} `xml:"numPr"`
}

type rPrXML struct {
	Style  valAttr `xml:"rStyle"`
	Bold   *onOff  `xml:"b"`
	Italic *onOff  `xml:"i"`
	Fonts  struct {
		ASCII string `xml:"ascii,attr"`
	} `xml:"rFonts"`
}

type tcPrXML struct {
	GridSpan valAttr  `xml:"gridSpan"`
	VMerge   *valAttr `xml:"vMerge"`
}

type trPrXML struct {
	Header *onOff `xml:"tblHeader"`
}

// paragraph is a parsed w:p before it is placed in the block stream.
type paragraph struct {
	style   styleInfo
	styleID string
	align   string
	numID   string
	ilvl    int
	inlines []ir.Inline
	images  []*ir.ImageBlock
}

func (pa *paragraph) listed() bool {
	return pa.numID != "" && pa.numID != "0"
}

func (pa *paragraph) text() string {
	return strings.TrimSpace(ir.PlainText(pa.inlines))
}

func (pa *paragraph) block() ir.Block {
	para := ir.NewParagraphInlines(pa.inlines...)
	para.Style = ir.ParagraphStyle{Alignment: alignment(pa.align), StyleName: pa.styleID}
	return para.Block()
}

// drawing collects the attributes of one picture.
type drawing struct {
	relID  string
	alt    string
	width  int
	height int
}

// parseBody streams the main document part and returns its blocks.
func (p *Parser) parseBody(dec *xml.Decoder) ([]ir.Block, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		if t, ok := tok.(xml.StartElement); ok && t.Name.Local == "body" {
			return p.parseBlocks(dec, "body", nil)
		}
	}
}

// parseBlocks reads block-level content until the end element named end.
// Cell properties are decoded into cell when it is not nil.
func (p *Parser) parseBlocks(dec *xml.Decoder, end string, cell *tcPrXML) ([]ir.Block, error) {
	b := newBlockBuilder(p)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; {
			case name == "p":
				pa, err := p.parseParagraph(dec)
				if err != nil {
					return nil, err
				}
				b.addParagraph(pa)
			case name == "tbl":
				tbl, err := p.parseTable(dec)
				if err != nil {
					return nil, err
				}
				if tbl != nil {
					b.addBlock(tbl.Block())
				}
			case name == "tcPr" && cell != nil:
				if err := dec.DecodeElement(cell, &t); err != nil {
					return nil, err
				}
			case transparent[name]:
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == end {
				return b.finish(), nil
			}
		}
	}
}

// parseParagraph reads a w:p element whose start tag was just consumed.
func (p *Parser) parseParagraph(dec *xml.Decoder) (*paragraph, error) {
	pa := &paragraph{}
	outline := -1
	var err error
	pa.inlines, err = p.parseInlines(dec, "p", pa, func(t xml.StartElement) error {
		var ppr pPrXML
		if err := dec.DecodeElement(&ppr, &t); err != nil {
			return err
		}
		pa.styleID = ppr.Style.Val
		pa.align = ppr.Jc.Val
		if ppr.NumPr != nil {
			pa.numID = ppr.NumPr.NumID.Val
			pa.ilvl, _ = strconv.Atoi(ppr.NumPr.Ilvl.Val)
		}
		if ppr.OutlineLvl != nil {
			if lvl, err := strconv.Atoi(ppr.OutlineLvl.Val); err == nil && lvl < 9 {
				outline = lvl
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pa.style = p.styles.Lookup(pa.styleID)
	if pa.style.kind == styleBody && outline >= 0 {
		pa.style = styleInfo{kind: styleHeading, level: ir.ClampLevel(outline + 1)}
	}
	return pa, nil
}

// parseInlines reads paragraph content until end. Paragraph properties are
// passed to props; pictures are appended to pa.images.
func (p *Parser) parseInlines(dec *xml.Decoder, end string, pa *paragraph, props func(xml.StartElement) error) ([]ir.Inline, error) {
	var out []ir.Inline
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; {
			case name == "pPr" && props != nil:
				if err := props(t); err != nil {
					return nil, err
				}
			case name == "r":
				spans, err := p.parseRun(dec, pa)
				if err != nil {
					return nil, err
				}
				out = append(out, spans...)
			case name == "hyperlink":
				href := p.hyperlink(attr(t, "id"), attr(t, "anchor"))
				children, err := p.parseInlines(dec, "hyperlink", pa, nil)
				if err != nil {
					return nil, err
				}
				if href == "" {
					out = append(out, children...)
				} else if len(children) > 0 {
					out = append(out, ir.Link(href, children...))
				}
			case transparent[name]:
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == end {
				return out, nil
			}
		}
	}
}

// parseRun reads a w:r element and returns its styled spans.
func (p *Parser) parseRun(dec *xml.Decoder, pa *paragraph) ([]ir.Inline, error) {
	var rpr rPrXML
	var spans []ir.Inline
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			spans = append(spans, ir.Text(text.String()))
			text.Reset()
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; name {
			case "rPr":
				if err := dec.DecodeElement(&rpr, &t); err != nil {
					return nil, err
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return nil, err
				}
				text.WriteString(s)
			case "tab", "ptab":
				text.WriteByte('\t')
			case "noBreakHyphen":
				text.WriteByte('-')
			case "br":
				switch attr(t, "type") {
				case "page", "column":
				default:
					flush()
					spans = append(spans, ir.LineBreak())
				}
			case "cr":
				flush()
				spans = append(spans, ir.LineBreak())
			case "drawing", "pict", "object":
				d, err := readDrawing(dec)
				if err != nil {
					return nil, err
				}
				if p.options.ExtractImages && d.relID != "" {
					if img := p.image(d); img != nil {
						pa.images = append(pa.images, img)
					}
				}
			case "AlternateContent", "Choice":
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "r" {
				flush()
				return styleRun(spans, &rpr, p.styles), nil
			}
		}
	}
}

// styleRun applies run formatting to spans.
func styleRun(spans []ir.Inline, rpr *rPrXML, styles *Styles) []ir.Inline {
	if len(spans) == 0 {
		return nil
	}
	if isCodeRun(rpr, styles) {
		var sb strings.Builder
		for _, s := range spans {
			if s.Type == ir.InlineLineBreak {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteString(s.Text)
		}
		return []ir.Inline{ir.Code(sb.String())}
	}
	if rpr.Italic.on() {
		spans = []ir.Inline{ir.Emphasis(spans...)}
	}
	if rpr.Bold.on() {
		spans = []ir.Inline{ir.Strong(spans...)}
	}
	return spans
}

var monospaceFonts = map[string]bool{
	"courier":         true,
	"courier new":     true,
	"consolas":        true,
	"menlo":           true,
	"monaco":          true,
	"lucida console":  true,
	"source code pro": true,
}

func isCodeRun(rpr *rPrXML, styles *Styles) bool {
	if rpr.Style.Val != "" {
		if info, ok := classify(rpr.Style.Val); ok && info.kind == styleCode {
			return true
		}
		if st, ok := styles.style(rpr.Style.Val); ok {
			if info, ok := classify(st.Name.Val); ok && info.kind == styleCode {
				return true
			}
		}
	}
	return monospaceFonts[strings.ToLower(rpr.Fonts.ASCII)]
}

// readDrawing collects picture attributes from a w:drawing, w:pict or
// w:object element whose start tag was just consumed.
func readDrawing(dec *xml.Decoder) (*drawing, error) {
	d := &drawing{}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "extent":
				if d.width == 0 {
					d.width = emuToPixels(attr(t, "cx"))
					d.height = emuToPixels(attr(t, "cy"))
				}
			case "docPr":
				if d.alt == "" {
					d.alt = firstNonEmpty(attr(t, "descr"), attr(t, "title"))
				}
			case "blip":
				if d.relID == "" {
					d.relID = firstNonEmpty(attr(t, "embed"), attr(t, "link"))
				}
			case "imagedata":
				if d.relID == "" {
					d.relID = attr(t, "id")
				}
				if d.alt == "" {
					d.alt = attr(t, "title")
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	return d, nil
}

func emuToPixels(s string) int {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return int((n + emuPerPixel/2) / emuPerPixel)
}

// tableCell holds a parsed w:tc before spans are resolved.
type tableCell struct {
	blocks []ir.Block
	span   int
	vmerge string // "", "restart" or "continue"
}

// parseTable reads a w:tbl element whose start tag was just consumed.
func (p *Parser) parseTable(dec *xml.Decoder) (*ir.TableBlock, error) {
	var rows [][]tableCell
	var row []tableCell
	header := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; {
			case name == "tr":
				row = nil
			case name == "trPr":
				var trPr trPrXML
				if err := dec.DecodeElement(&trPr, &t); err != nil {
					return nil, err
				}
				if len(rows) == 0 && trPr.Header.on() {
					header = true
				}
			case name == "tc":
				var tcPr tcPrXML
				blocks, err := p.parseBlocks(dec, "tc", &tcPr)
				if err != nil {
					return nil, err
				}
				cell := tableCell{blocks: blocks, span: 1}
				if n, err := strconv.Atoi(tcPr.GridSpan.Val); err == nil && n > 1 {
					cell.span = n
				}
				if tcPr.VMerge != nil {
					cell.vmerge = tcPr.VMerge.Val
					if cell.vmerge == "" {
						cell.vmerge = "continue"
					}
				}
				row = append(row, cell)
			case transparent[name]:
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tr":
				if len(row) > 0 {
					rows = append(rows, row)
				}
				row = nil
			case "tbl":
				return buildTable(rows, header), nil
			}
		}
	}
}

// buildTable constructs an IR table from parsed rows. Grid positions
// covered by a horizontal or vertical span hold merged placeholders.
func buildTable(rows [][]tableCell, header bool) *ir.TableBlock {
	if len(rows) == 0 {
		return nil
	}

	table := &ir.TableBlock{Cells: make([][]ir.Cell, len(rows))}
	origin := make(map[int][2]int) // grid column -> row/index of the merge origin
	for i, row := range rows {
		col := 0
		for _, c := range row {
			if c.vmerge == "continue" {
				if pos, ok := origin[col]; ok {
					table.Cells[pos[0]][pos[1]].RowSpan++
					for range c.span {
						table.Cells[i] = append(table.Cells[i], ir.MergedCell())
					}
					col += c.span
					continue
				}
			}
			for g := col; g < col+c.span; g++ {
				delete(origin, g)
			}
			if c.vmerge == "restart" {
				origin[col] = [2]int{i, len(table.Cells[i])}
			}
			table.Cells[i] = append(table.Cells[i], ir.Cell{Blocks: c.blocks, RowSpan: 1, ColSpan: c.span})
			for range c.span - 1 {
				table.Cells[i] = append(table.Cells[i], ir.MergedCell())
			}
			col += c.span
		}
	}

	// Check if first row might be header
	if header || len(rows) > 1 {
		table.SetHeaderRow()
	}
	return table
}

// blockBuilder groups paragraphs into lists, code blocks, quotes and
// table-of-contents lists as they stream in.
type blockBuilder struct {
	p     *Parser
	out   []ir.Block
	lists []listFrame
	code  []string
	quote []ir.Block
	toc   *ir.ListBlock
}

type listFrame struct {
	list  *ir.ListBlock
	level int
	numID string
}

func newBlockBuilder(p *Parser) *blockBuilder {
	return &blockBuilder{p: p}
}

func (b *blockBuilder) addParagraph(pa *paragraph) {
	switch {
	case pa.style.kind == styleTitle:
		b.flush()
		if b.p.title == "" {
			b.p.title = pa.text()
		}
	case pa.style.kind == styleHeading && pa.text() != "":
		b.flush()
		b.out = append(b.out, (&ir.Heading{Level: pa.style.level, Inlines: pa.inlines}).Block())
	case pa.listed():
		b.flushCode()
		b.flushQuote()
		b.flushTOC()
		b.addListItem(pa)
		return
	case pa.style.kind == styleCode:
		b.flushLists()
		b.flushQuote()
		b.flushTOC()
		b.code = append(b.code, codeLine(pa.inlines))
	case pa.style.kind == styleQuote:
		b.flushLists()
		b.flushCode()
		b.flushTOC()
		if len(pa.inlines) > 0 {
			b.quote = append(b.quote, pa.block())
		}
	case pa.style.kind == styleTOC:
		b.flushLists()
		b.flushCode()
		b.flushQuote()
		if len(pa.inlines) > 0 {
			if b.toc == nil {
				b.toc = ir.NewUnorderedList()
			}
			b.toc.AddItemBlocks(pa.block())
		}
	case pa.style.kind == styleCaption:
		b.flush()
		if !b.attachCaption(pa.text()) && len(pa.inlines) > 0 {
			b.out = append(b.out, pa.block())
		}
	default:
		if pa.text() == "" && len(pa.images) == 0 {
			return
		}
		b.flush()
		if pa.text() != "" {
			b.out = append(b.out, pa.block())
		}
	}
	for _, img := range pa.images {
		b.addBlock(img.Block())
	}
}

// attachCaption sets the caption of a directly preceding image or table.
func (b *blockBuilder) attachCaption(text string) bool {
	if text == "" || len(b.out) == 0 {
		return false
	}
	switch last := b.out[len(b.out)-1]; {
	case last.Type == ir.BlockTypeImage && last.Image.Caption == "":
		last.Image.Caption = text
		return true
	case last.Type == ir.BlockTypeTable && last.Table.Caption == "":
		last.Table.Caption = text
		return true
	}
	return false
}

func (b *blockBuilder) addBlock(blk ir.Block) {
	b.flush()
	b.out = append(b.out, blk)
}

// addListItem places a numbered paragraph, nesting by indentation level.
// A different list at the same level starts a new list.
func (b *blockBuilder) addListItem(pa *paragraph) {
	ordered, start := b.p.numbering.Ordered(pa.numID, pa.ilvl)
	for len(b.lists) > 0 && b.top().level > pa.ilvl {
		b.popList()
	}
	if len(b.lists) > 0 && b.top().level == pa.ilvl &&
		(b.top().numID != pa.numID || b.top().list.Ordered != ordered) {
		b.popList()
	}
	if len(b.lists) == 0 || b.top().level < pa.ilvl {
		list := ir.NewList(ordered)
		list.Start = start
		b.lists = append(b.lists, listFrame{list: list, level: pa.ilvl, numID: pa.numID})
	}

	item := []ir.Block{pa.block()}
	for _, img := range pa.images {
		item = append(item, img.Block())
	}
	b.top().list.AddItemBlocks(item...)
}

func (b *blockBuilder) top() *listFrame {
	return &b.lists[len(b.lists)-1]
}

func (b *blockBuilder) popList() {
	frame := b.lists[len(b.lists)-1]
	b.lists = b.lists[:len(b.lists)-1]
	if len(b.lists) > 0 {
		b.top().list.AddSublist(frame.list)
		return
	}
	b.out = append(b.out, frame.list.Block())
}

func (b *blockBuilder) flushLists() {
	for len(b.lists) > 0 {
		b.popList()
	}
}

func (b *blockBuilder) flushCode() {
	if len(b.code) == 0 {
		return
	}
	b.out = append(b.out, ir.NewCode(strings.Join(b.code, "\n"), "").Block())
	b.code = nil
}

func (b *blockBuilder) flushQuote() {
	if len(b.quote) == 0 {
		return
	}
	b.out = append(b.out, ir.NewQuote(b.quote...).Block())
	b.quote = nil
}

func (b *blockBuilder) flushTOC() {
	if b.toc == nil {
		return
	}
	b.out = append(b.out, b.toc.Block())
	b.toc = nil
}

func (b *blockBuilder) flush() {
	b.flushLists()
	b.flushCode()
	b.flushQuote()
	b.flushTOC()
}

func (b *blockBuilder) finish() []ir.Block {
	b.flush()
	return b.out
}

// codeLine flattens a code paragraph, keeping explicit line breaks.
func codeLine(inlines []ir.Inline) string {
	var sb strings.Builder
	var walk func([]ir.Inline)
	walk = func(spans []ir.Inline) {
		for _, in := range spans {
			switch in.Type {
			case ir.InlineText, ir.InlineCode:
				sb.WriteString(in.Text)
			case ir.InlineLineBreak:
				sb.WriteByte('\n')
			default:
				walk(in.Children)
			}
		}
	}
	walk(inlines)
	return sb.String()
}

func alignment(jc string) string {
	switch jc {
	case "left", "start":
		return "left"
	case "right", "end":
		return "right"
	case "center":
		return "center"
	case "both", "distribute":
		return "justify"
	}
	return ""
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
