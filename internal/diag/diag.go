// Package diag collects the non-fatal problems found during a run.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Severity grades a diagnostic entry.
type Severity string

const (
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// NoChapter marks entries that concern the whole document.
const NoChapter = -1

// Entry is one recorded problem.
type Entry struct {
	Stage    string   `json:"stage"`
	Severity Severity `json:"severity"`
	Chapter  int      `json:"chapter"`
	Asset    string   `json:"asset,omitempty"`
	Message  string   `json:"message"`
}

func (e Entry) String() string {
	scope := "document"
	if e.Chapter != NoChapter {
		scope = fmt.Sprintf("chapter %d", e.Chapter)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Severity, e.Stage, scope, e.Message)
}

// List is a concurrency-safe diagnostics accumulator.
type List struct {
	mu      sync.Mutex
	entries []Entry
}

// Add records an entry.
func (l *List) Add(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// AddAll records several entries.
func (l *List) AddAll(entries []Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entries...)
	l.mu.Unlock()
}

// Warnf records a document-level warning.
func (l *List) Warnf(stage, format string, args ...any) {
	l.Add(Entry{Stage: stage, Severity: Warning, Chapter: NoChapter, Message: fmt.Sprintf(format, args...)})
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a sorted copy of the entries. The order depends only on
// entry contents, so concurrent producers yield the same result every run.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()
	Sort(out)
	return out
}

// ForChapter returns the sorted entries recorded against one chapter.
func (l *List) ForChapter(ordinal int) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Chapter == ordinal {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any entry has error severity.
func (l *List) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Severity == Error {
			return true
		}
	}
	return false
}

// Sort orders entries by chapter, stage, asset and message.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Chapter != b.Chapter {
			return a.Chapter < b.Chapter
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.Message < b.Message
	})
}
