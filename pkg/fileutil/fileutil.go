// Package fileutil locates project files by name regardless of case.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches dir for a file named filename, ignoring
// case, and returns its path.
//
//	path, err := FindFileCaseInsensitive("/proj", "Symbols.yaml")
//	// finds "symbols.yaml", "SYMBOLS.YAML", ...
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	name, err := FindFileCaseInsensitiveFS(os.DirFS(dir), ".", filename)
	if err != nil {
		return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, err)
	}
	return filepath.Join(dir, filepath.FromSlash(name)), nil
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive on fsys. The result
// uses forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return path.Join(dir, entry.Name()), nil
		}
	}
	return "", fs.ErrNotExist
}
