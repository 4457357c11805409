package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPrompt is the system prompt sent with every chapter.
const DefaultPrompt = `You convert one chapter of a document from an HTML fragment into clean CommonMark Markdown.

Rules:
- Keep every piece of text. Do not summarize, translate or add content.
- Keep heading levels exactly as in the fragment.
- Use pipe tables with a header separator row.
- Keep image paths and link targets exactly as given.
- Use fenced code blocks and keep their language tags.
- Output only the Markdown body. No front matter, no explanations, no surrounding code fence.`

// UserMessage builds the user turn for a request.
func UserMessage(req FormatRequest) string {
	var sb strings.Builder
	if req.Options.Language != "" {
		fmt.Fprintf(&sb, "Document language: %s\n", req.Options.Language)
	}
	if req.Title != "" {
		fmt.Fprintf(&sb, "Chapter title: %s\n", req.Title)
	}
	sb.WriteString("\n")
	sb.WriteString(req.Content)
	return sb.String()
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:markdown|md)?[ \\t]*\\n(.*?)\\n?```$")

// StripCodeFence removes a fence the model wrapped its whole answer in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}
