// Package fs provides the real filesystem implementation of the resolver's
// FileReader collaborator, plus an atomic file writer shared by everything
// that persists state.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OSFileReader reads input files from the real filesystem.
type OSFileReader struct{}

// NewOSFileReader creates a file reader backed by the os package.
func NewOSFileReader() *OSFileReader {
	return &OSFileReader{}
}

// IsFile reports whether path names an existing regular file.
func (r *OSFileReader) IsFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ReadLines reads the whole file as UTF-8 text and splits it into lines.
// Line endings are not included; a trailing newline does not produce an
// extra empty line.
func (r *OSFileReader) ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// Canonical maps a path to its absolute cleaned form, following symlinks
// where possible, so the same file is recognized however it is spelled.
func (r *OSFileReader) Canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
