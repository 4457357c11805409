package output

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roboco-io/chaptermd/internal/fsutil"
)

// DefaultWriteAttempts is the number of tries per file.
const DefaultWriteAttempts = 3

// Writer writes files below the output root. Every write is atomic and
// retried independently of other files.
type Writer struct {
	dir      fsutil.Dir
	attempts int
	wait     time.Duration
	log      *slog.Logger
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		dir:      fsutil.Dir(root),
		attempts: DefaultWriteAttempts,
		wait:     50 * time.Millisecond,
		log:      log,
	}
}

// Root returns the output root.
func (w *Writer) Root() string {
	return string(w.dir)
}

// WriteFile writes rel, retrying transient failures.
func (w *Writer) WriteFile(rel string, data []byte) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err = w.dir.WriteFile(rel, data); err == nil {
			return nil
		}
		w.log.Warn("write failed", "file", rel, "attempt", attempt, "error", err)
		if attempt < w.attempts {
			time.Sleep(w.wait * time.Duration(attempt))
		}
	}
	return fmt.Errorf("write %s: %w", rel, err)
}

// Remove deletes rel if it exists.
func (w *Writer) Remove(rel string) error {
	return w.dir.Remove(rel)
}
