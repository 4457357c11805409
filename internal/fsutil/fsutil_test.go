package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDir_WriteFile(t *testing.T) {
	root := t.TempDir()
	d := Dir(root)

	if err := d.WriteFile("chapters/00-intro.md", []byte("# Intro\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "chapters", "00-intro.md"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(data) != "# Intro\n" {
		t.Errorf("expected content, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "chapters"))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestDir_WriteFileSkipsIdenticalContent(t *testing.T) {
	root := t.TempDir()
	d := Dir(root)
	name := filepath.Join(root, "a.bin")

	if err := d.WriteFile("a.bin", []byte("same")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(name, old, old); err != nil {
		t.Fatal(err)
	}

	if err := d.WriteFile("a.bin", []byte("same")); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(name)
	if !info.ModTime().Equal(old) {
		t.Errorf("expected identical write to be skipped")
	}

	if err := d.WriteFile("a.bin", []byte("different")); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(name)
	if string(data) != "different" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestDir_PathRejectsEscapes(t *testing.T) {
	d := Dir(t.TempDir())
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"index.md", false},
		{"assets/x.png", false},
		{"../outside.md", false}, // cleaned to the root
		{"", true},
		{`a\b`, true},
	}

	for _, tt := range tests {
		got, err := d.Path(tt.rel)
		if (err != nil) != tt.wantErr {
			t.Errorf("Path(%q): unexpected error state %v", tt.rel, err)
		}
		if err == nil {
			rel, _ := filepath.Rel(string(d), got)
			if rel == ".." || filepath.IsAbs(rel) || len(rel) > 1 && rel[:2] == ".." {
				t.Errorf("Path(%q) escapes root: %s", tt.rel, got)
			}
		}
	}
}

func TestDir_Remove(t *testing.T) {
	d := Dir(t.TempDir())
	if err := d.Remove("missing.json"); err != nil {
		t.Errorf("expected removing a missing file to succeed, got %v", err)
	}
}
