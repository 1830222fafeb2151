package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ReadPaths expands file paths, directories and ** glob patterns and reads
// every matching regular file. Each pattern must match at least one file.
func ReadPaths(patterns []string) ([]File, error) {
	var files []File
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "**", "*")
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		found := 0
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			found++
			if seen[path] {
				continue
			}
			seen[path] = true

			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			files = append(files, File{Name: filepath.Base(path), Source: path, Data: data})
		}
		if found == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
	}

	return files, nil
}

// Filter keeps the files the loader has a parser for.
func (l *Loader) Filter(files []File) []File {
	out := files[:0:0]
	for _, f := range files {
		if l.Supports(f.Name) {
			out = append(out, f)
		}
	}
	return out
}
