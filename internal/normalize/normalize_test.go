package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
)

func apply(p Pass, doc *ir.Document) []diag.Entry {
	var d diag.List
	p.Apply(doc, &d)
	return d.Entries()
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	doc := ir.NewDocument()
	doc.AddParagraph(ir.NewParagraph("   "))
	doc.AddParagraph(ir.NewParagraph("kept"))

	out, _ := Normalize(doc)

	if len(doc.Content) != 2 {
		t.Errorf("expected input to keep 2 blocks, got %d", len(doc.Content))
	}
	if len(out.Content) != 1 {
		t.Errorf("expected output to have 1 block, got %d", len(out.Content))
	}
}

func TestNormalize_NilDocument(t *testing.T) {
	out, entries := Normalize(nil)
	if out == nil || len(out.Content) != 0 || len(entries) != 0 {
		t.Errorf("expected empty document without findings, got %+v %v", out, entries)
	}
}

func TestNormalizer_Passes(t *testing.T) {
	got := New(Options{StripTOC: false}).Passes()
	want := []string{"nfc-text", "merge-inlines", "repair-tables", "drop-empty", "heading-levels"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNewWithPasses(t *testing.T) {
	doc := ir.NewDocument()
	doc.AddParagraph(ir.NewParagraph("   "))
	doc.AddParagraph(ir.NewParagraph("kept"))

	n := NewWithPasses(DropEmpty())
	if got := n.Passes(); !reflect.DeepEqual(got, []string{"drop-empty"}) {
		t.Fatalf("expected only drop-empty, got %v", got)
	}
	out, _ := n.Run(doc)
	if len(out.Content) != 1 || out.Content[0].PlainText() != "kept" {
		t.Errorf("expected the blank paragraph to be dropped, got %+v", out.Content)
	}
}

func TestNFCText(t *testing.T) {
	doc := ir.NewDocument()
	// "e" followed by a combining acute accent
	doc.AddHeading(ir.NewHeading(1, "Cafe\u0301"))

	apply(NFCText(), doc)

	if got := doc.Content[0].Heading.Text(); got != "Caf\u00e9" {
		t.Errorf("expected composed form, got %q", got)
	}
}

func TestMergeInlines(t *testing.T) {
	tests := []struct {
		name string
		in   []ir.Inline
		want []ir.Inline
	}{
		{
			name: "adjacent text",
			in:   []ir.Inline{ir.Text("a"), ir.Text("b")},
			want: []ir.Inline{ir.Text("ab")},
		},
		{
			name: "adjacent emphasis",
			in:   []ir.Inline{ir.Emphasis(ir.Text("a")), ir.Emphasis(ir.Text("b"))},
			want: []ir.Inline{ir.Emphasis(ir.Text("ab"))},
		},
		{
			name: "separated emphasis stays apart",
			in:   []ir.Inline{ir.Emphasis(ir.Text("a")), ir.Text(" "), ir.Emphasis(ir.Text("b"))},
			want: []ir.Inline{ir.Emphasis(ir.Text("a")), ir.Text(" "), ir.Emphasis(ir.Text("b"))},
		},
		{
			name: "links with same target",
			in:   []ir.Inline{ir.Link("#x", ir.Text("a")), ir.Link("#x", ir.Text("b")), ir.Link("#y", ir.Text("c"))},
			want: []ir.Inline{ir.Link("#x", ir.Text("ab")), ir.Link("#y", ir.Text("c"))},
		},
		{
			name: "empty spans dropped",
			in:   []ir.Inline{ir.Text(""), ir.Strong(), ir.Strong(ir.Text("")), ir.Text("x")},
			want: []ir.Inline{ir.Text("x")},
		},
		{
			name: "line breaks kept",
			in:   []ir.Inline{ir.Text("a"), ir.LineBreak(), ir.LineBreak(), ir.Text("b")},
			want: []ir.Inline{ir.Text("a"), ir.LineBreak(), ir.LineBreak(), ir.Text("b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ir.NewDocument()
			doc.AddParagraph(ir.NewParagraphInlines(tt.in...))

			apply(MergeInlines(), doc)
			got := doc.Content[0].Paragraph.Inlines
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}

			apply(MergeInlines(), doc)
			if again := doc.Content[0].Paragraph.Inlines; !reflect.DeepEqual(again, got) {
				t.Errorf("second pass changed spans: %+v", again)
			}
		})
	}
}

func TestRepairTables(t *testing.T) {
	tests := []struct {
		name  string
		rows  [][]string
		width int
	}{
		{"pads short rows", [][]string{{"a", "b", "c"}, {"d", "e", "f"}, {"g"}}, 3},
		{"truncates long rows", [][]string{{"a", "b"}, {"c", "d"}, {"e", "f", "g", "h"}}, 2},
		{"tie prefers wider", [][]string{{"a", "b"}, {"c", "d", "e"}}, 3},
		{"drops empty rows", [][]string{{}, {"a"}, {}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ir.NewDocument()
			doc.AddTable(ir.NewTableFromRows(tt.rows))

			entries := apply(RepairTables(), doc)
			if len(entries) != 0 {
				t.Errorf("expected repairs to be silent, got %v", entries)
			}

			table := doc.Content[0].Table
			for i, row := range table.Cells {
				if len(row) != tt.width {
					t.Errorf("row %d: expected width %d, got %d", i, tt.width, len(row))
				}
			}
		})
	}
}

func TestRepairTables_KeepsCellContent(t *testing.T) {
	doc := ir.NewDocument()
	doc.AddTable(ir.NewTableFromRows([][]string{{"a", "b"}, {"c", "d"}, {"e"}}))

	apply(RepairTables(), doc)

	table := doc.Content[0].Table
	if table.GetCell(2, 0).Text() != "e" || table.GetCell(2, 1).Text() != "" {
		t.Errorf("unexpected padded row: %q %q", table.GetCell(2, 0).Text(), table.GetCell(2, 1).Text())
	}
}

func TestDropEmpty(t *testing.T) {
	empty := ir.NewUnorderedList()
	empty.AddItem("  ")
	mixed := ir.NewUnorderedList()
	mixed.AddItem("")
	mixed.AddItem("real")

	doc := ir.NewDocument()
	doc.AddParagraph(ir.NewParagraph(""))
	doc.AddParagraph(ir.NewParagraph(" \t "))
	doc.AddHeading(ir.NewHeading(1, ""))
	doc.AddThematicBreak()
	doc.AddList(empty)
	doc.AddList(mixed)
	doc.AddQuote(ir.NewQuote(ir.NewParagraph("").Block()))
	doc.AddCode(ir.NewCode("\n", ""))
	doc.AddImage(&ir.ImageBlock{Alt: "nothing behind it"})
	doc.AddParagraph(ir.NewParagraphInlines(ir.LineBreak()))

	apply(DropEmpty(), doc)

	var types []ir.BlockType
	for _, b := range doc.Content {
		types = append(types, b.Type)
	}
	want := []ir.BlockType{ir.BlockTypeHeading, ir.BlockTypeThematicBreak, ir.BlockTypeList}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	if n := len(doc.Content[2].List.Items); n != 1 {
		t.Errorf("expected 1 remaining list item, got %d", n)
	}
}

func tocList(hrefs ...string) *ir.ListBlock {
	l := ir.NewUnorderedList()
	for _, h := range hrefs {
		l.AddItemBlocks(ir.NewParagraphInlines(ir.Link(h, ir.Text(strings.TrimPrefix(h, "#")))).Block())
	}
	return l
}

func TestStripLeadingTOC(t *testing.T) {
	t.Run("list of internal links after title", func(t *testing.T) {
		doc := ir.NewDocument()
		doc.AddHeading(ir.NewHeading(1, "Guide"))
		doc.AddList(tocList("#intro", "#setup"))
		doc.AddParagraph(ir.NewParagraph("body"))

		entries := apply(StripLeadingTOC(), doc)

		if len(doc.Content) != 2 || doc.Content[1].Type != ir.BlockTypeParagraph {
			t.Fatalf("expected TOC list removed, got %d blocks", len(doc.Content))
		}
		if len(entries) != 1 || entries[0].Severity != diag.Info {
			t.Errorf("expected one info entry, got %v", entries)
		}
	})

	t.Run("caption and nested list at start", func(t *testing.T) {
		nested := tocList("#a")
		nested.AddSublist(tocList("#a-1", "#a-2"))

		doc := ir.NewDocument()
		doc.AddParagraph(ir.NewParagraph("Table of Contents"))
		doc.AddList(nested)
		doc.AddHeading(ir.NewHeading(1, "A"))

		apply(StripLeadingTOC(), doc)

		if len(doc.Content) != 1 || doc.Content[0].Type != ir.BlockTypeHeading {
			t.Errorf("expected only the heading to remain, got %d blocks", len(doc.Content))
		}
	})

	t.Run("dotted leaders", func(t *testing.T) {
		doc := ir.NewDocument()
		doc.AddHeading(ir.NewHeading(1, "Manual"))
		doc.AddParagraph(ir.NewParagraph("Introduction ........ 1"))
		doc.AddParagraph(ir.NewParagraph("Installation ........ 4"))
		doc.AddParagraph(ir.NewParagraph("Usage\t9"))
		doc.AddParagraph(ir.NewParagraph("Welcome."))

		apply(StripLeadingTOC(), doc)

		if len(doc.Content) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(doc.Content))
		}
		if doc.Content[1].Paragraph.Text() != "Welcome." {
			t.Errorf("unexpected remaining paragraph %q", doc.Content[1].Paragraph.Text())
		}
	})

	t.Run("external links are content", func(t *testing.T) {
		doc := ir.NewDocument()
		doc.AddHeading(ir.NewHeading(1, "Links"))
		doc.AddList(tocList("https://example.com", "#local"))

		apply(StripLeadingTOC(), doc)

		if len(doc.Content) != 2 {
			t.Errorf("expected list kept, got %d blocks", len(doc.Content))
		}
	})

	t.Run("later lists are untouched", func(t *testing.T) {
		doc := ir.NewDocument()
		doc.AddHeading(ir.NewHeading(1, "Title"))
		doc.AddParagraph(ir.NewParagraph("Intro"))
		doc.AddList(tocList("#a", "#b"))

		apply(StripLeadingTOC(), doc)

		if len(doc.Content) != 3 {
			t.Errorf("expected 3 blocks, got %d", len(doc.Content))
		}
	})
}

func TestHeadingLevels_FlagsJumpsWithoutRenumbering(t *testing.T) {
	doc := ir.NewDocument()
	doc.AddHeading(ir.NewHeading(1, "One"))
	doc.AddHeading(ir.NewHeading(3, "Three"))
	doc.AddHeading(ir.NewHeading(2, "Two"))

	entries := apply(HeadingLevels(), doc)

	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if entries[0].Severity != diag.Warning || !strings.Contains(entries[0].Message, "H1 to H3") {
		t.Errorf("unexpected entry %v", entries[0])
	}
	if doc.Content[1].Heading.Level != 3 {
		t.Errorf("expected level kept at 3, got %d", doc.Content[1].Heading.Level)
	}
}
