package normalize

import (
	"golang.org/x/text/unicode/norm"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
)

// NFCText puts every text span, alt text and caption into Unicode NFC so that
// visually identical titles produce identical slugs.
func NFCText() Pass {
	return passFunc{name: "nfc-text", fn: func(doc *ir.Document, _ *diag.List) {
		doc.Metadata.Title = norm.NFC.String(doc.Metadata.Title)
		forEachInlines(doc.Content, nfcInlines)
		ir.Walk(doc.Content, func(b *ir.Block) bool {
			switch b.Type {
			case ir.BlockTypeImage:
				b.Image.Alt = norm.NFC.String(b.Image.Alt)
				b.Image.Caption = norm.NFC.String(b.Image.Caption)
			case ir.BlockTypeTable:
				b.Table.Caption = norm.NFC.String(b.Table.Caption)
			}
			return true
		})
	}}
}

func nfcInlines(in []ir.Inline) []ir.Inline {
	for i := range in {
		if in[i].Text != "" {
			in[i].Text = norm.NFC.String(in[i].Text)
		}
		if len(in[i].Children) > 0 {
			in[i].Children = nfcInlines(in[i].Children)
		}
	}
	return in
}

// MergeInlines merges adjacent spans of identical style and drops spans that
// carry nothing. Applying it twice yields the same result as applying it once.
func MergeInlines() Pass {
	return passFunc{name: "merge-inlines", fn: func(doc *ir.Document, _ *diag.List) {
		forEachInlines(doc.Content, mergeSpans)
	}}
}

func mergeSpans(in []ir.Inline) []ir.Inline {
	out := make([]ir.Inline, 0, len(in))
	for _, span := range in {
		if len(span.Children) > 0 {
			span.Children = mergeSpans(span.Children)
		}
		if isEmptySpan(span) {
			continue
		}
		if n := len(out); n > 0 && mergeable(out[n-1], span) {
			prev := &out[n-1]
			switch span.Type {
			case ir.InlineText, ir.InlineCode:
				prev.Text += span.Text
			default:
				prev.Children = mergeSpans(append(prev.Children, span.Children...))
			}
			continue
		}
		out = append(out, span)
	}
	return out
}

func isEmptySpan(span ir.Inline) bool {
	switch span.Type {
	case ir.InlineText, ir.InlineCode:
		return span.Text == ""
	case ir.InlineEmphasis, ir.InlineStrong:
		return len(span.Children) == 0
	case ir.InlineLink:
		return len(span.Children) == 0 && span.Href == ""
	}
	return false
}

func mergeable(a, b ir.Inline) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ir.InlineText, ir.InlineCode, ir.InlineEmphasis, ir.InlineStrong:
		return true
	case ir.InlineLink:
		return a.Href == b.Href
	}
	return false
}
