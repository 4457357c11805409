package ir

import "strings"

// InlineType represents the type of an inline span.
type InlineType string

const (
	InlineText      InlineType = "text"
	InlineEmphasis  InlineType = "emphasis"
	InlineStrong    InlineType = "strong"
	InlineCode      InlineType = "code"
	InlineLink      InlineType = "link"
	InlineLineBreak InlineType = "line_break"
)

// Inline is a span of styled text. Text and Code carry Text; Emphasis,
// Strong and Link carry Children; Link also carries Href.
type Inline struct {
	Type     InlineType `json:"type"`
	Text     string     `json:"text,omitempty"`
	Href     string     `json:"href,omitempty"`
	Children []Inline   `json:"children,omitempty"`
}

// Text returns a plain text span.
func Text(s string) Inline {
	return Inline{Type: InlineText, Text: s}
}

// Emphasis wraps spans in emphasis.
func Emphasis(children ...Inline) Inline {
	return Inline{Type: InlineEmphasis, Children: children}
}

// Strong wraps spans in strong emphasis.
func Strong(children ...Inline) Inline {
	return Inline{Type: InlineStrong, Children: children}
}

// Code returns an inline code span.
func Code(s string) Inline {
	return Inline{Type: InlineCode, Text: s}
}

// Link wraps spans in a hyperlink.
func Link(href string, children ...Inline) Inline {
	return Inline{Type: InlineLink, Href: href, Children: children}
}

// LineBreak returns a hard line break.
func LineBreak() Inline {
	return Inline{Type: InlineLineBreak}
}

// IsInternal reports whether a link points inside the document.
func (in Inline) IsInternal() bool {
	return in.Type == InlineLink && strings.HasPrefix(in.Href, "#")
}

// PlainText concatenates the text of all spans. Line breaks become spaces.
func PlainText(inlines []Inline) string {
	var sb strings.Builder
	writePlain(&sb, inlines)
	return sb.String()
}

func writePlain(sb *strings.Builder, inlines []Inline) {
	for _, in := range inlines {
		switch in.Type {
		case InlineText, InlineCode:
			sb.WriteString(in.Text)
		case InlineLineBreak:
			sb.WriteByte(' ')
		default:
			writePlain(sb, in.Children)
		}
	}
}

// CloneInlines returns a deep copy of the spans.
func CloneInlines(in []Inline) []Inline {
	if in == nil {
		return nil
	}
	out := make([]Inline, len(in))
	for i, span := range in {
		out[i] = span
		out[i].Children = CloneInlines(span.Children)
	}
	return out
}
