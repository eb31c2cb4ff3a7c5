package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxTreeEntries bounds the project tree sent to the model.
const maxTreeEntries = 400

// mainFileNames are conventional entry points, manifests and readmes.
var mainFileNames = map[string]bool{
	"index.html":       true,
	"index.js":         true,
	"index.jsx":        true,
	"index.ts":         true,
	"index.tsx":        true,
	"main.py":          true,
	"app.py":           true,
	"main.js":          true,
	"app.js":           true,
	"App.jsx":          true,
	"App.tsx":          true,
	"main.go":          true,
	"go.mod":           true,
	"package.json":     true,
	"requirements.txt": true,
	"README.md":        true,
}

// Tree renders the workspace as an indented listing, directories first by
// walk order, skipping hidden entries, dependency caches and ignore globs.
func (w *Workspace) Tree() (string, error) {
	var b strings.Builder
	entries := 0
	omitted := 0

	b.WriteString(w.name + "/\n")
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == w.root {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if w.ignored(rel, d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entries >= maxTreeEntries {
			omitted++
			return nil
		}
		entries++

		depth := strings.Count(rel, "/") + 1
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(d.Name())
		if d.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to list workspace: %w", err)
	}

	if entries == 0 {
		return "(empty directory)", nil
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "  ... (%d more entries)\n", omitted)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// MainFiles returns relative paths of conventional entry files, at most limit
// of them (limit <= 0 means no limit).
func (w *Workspace) MainFiles(limit int) ([]string, error) {
	var found []string
	errStop := errors.New("limit reached")

	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == w.root {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if w.ignored(rel, d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && mainFileNames[d.Name()] {
			found = append(found, rel)
			if limit > 0 && len(found) >= limit {
				return errStop
			}
		}
		return nil
	})
	if err != nil && err != errStop {
		return nil, fmt.Errorf("failed to search workspace: %w", err)
	}
	return found, nil
}

// ReadFile returns the content of a workspace file addressed by a relative
// (possibly unnormalized) path.
func (w *Workspace) ReadFile(raw string) (string, error) {
	_, abs, err := w.Resolve(raw)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Truncate cuts content to at most maxChars characters and appends a visible
// marker when anything was dropped.
func Truncate(content string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxChars]) + "\n... (truncated)"
}
