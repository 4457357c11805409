// Package fsutil writes files atomically below a root directory.
package fsutil

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it into place, so readers never observe a partial file.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// SameContent reports whether name already holds exactly data.
func SameContent(name string, data []byte) bool {
	info, err := os.Stat(name)
	if err != nil || !info.Mode().IsRegular() || info.Size() != int64(len(data)) {
		return false
	}
	existing, err := os.ReadFile(name)
	return err == nil && bytes.Equal(existing, data)
}

// Dir writes slash-separated relative paths below a root directory.
type Dir string

// Path resolves a relative slash path below the root. Paths escaping the
// root are rejected.
func (d Dir) Path(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, "\\") {
		return "", fmt.Errorf("invalid relative path %q", rel)
	}
	return filepath.Join(string(d), filepath.FromSlash(clean[1:])), nil
}

// WriteFile atomically writes rel unless it already holds identical bytes.
func (d Dir) WriteFile(rel string, data []byte) error {
	name, err := d.Path(rel)
	if err != nil {
		return err
	}
	if SameContent(name, data) {
		return nil
	}
	return WriteFileAtomic(name, data, 0o644)
}

// Remove deletes rel if present.
func (d Dir) Remove(rel string) error {
	name, err := d.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
