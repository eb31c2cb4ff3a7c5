// Package workspace addresses the directory the bot edits. Every filesystem
// path derived from model output goes through Resolve, which normalizes it and
// refuses anything that could land outside the root or inside protected areas
// such as the git metadata directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrUnsafePath is returned by Resolve for paths that escape the workspace or
// touch a protected location.
var ErrUnsafePath = errors.New("unsafe path")

// dependencyDirs are never listed nor searched.
var dependencyDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	"__pycache__":  true,
	".git":         true,
	"vendor":       true,
}

// Workspace is a directory addressed only through relative paths.
type Workspace struct {
	root      string
	name      string
	ignore    []string
	protected []string
}

// New creates a workspace rooted at dir. ignore globs hide entries from the
// project tree; protected globs make paths unwritable.
func New(dir string, ignore, protected []string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", abs)
	}

	for _, g := range append(append([]string{}, ignore...), protected...) {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid glob %q", g)
		}
	}

	return &Workspace{
		root:      abs,
		name:      filepath.Base(abs),
		ignore:    ignore,
		protected: protected,
	}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// Name returns the workspace directory's base name.
func (w *Workspace) Name() string { return w.name }

// Normalize applies Normalize with this workspace's name.
func (w *Workspace) Normalize(raw string) string {
	return Normalize(raw, w.name)
}

// Resolve normalizes raw and returns the cleaned relative path plus the
// absolute path inside the workspace. It rejects absolute paths, ".."
// segments, protected globs and symlinks that lead outside the root.
func (w *Workspace) Resolve(raw string) (rel, abs string, err error) {
	rel = w.Normalize(raw)
	if rel == "" {
		return "", "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if filepath.VolumeName(rel) != "" || path.IsAbs(rel) || hasDriveLetter(rel) {
		return "", "", fmt.Errorf("%w: %s is absolute", ErrUnsafePath, rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", "", fmt.Errorf("%w: %s leaves the workspace", ErrUnsafePath, rel)
		}
	}

	rel = path.Clean(rel)
	if rel == "." {
		return "", "", fmt.Errorf("%w: path names the workspace root", ErrUnsafePath)
	}
	if w.IsProtected(rel) {
		return "", "", fmt.Errorf("%w: %s is protected", ErrUnsafePath, rel)
	}

	abs = filepath.Join(w.root, filepath.FromSlash(rel))
	if err := w.checkSymlinks(abs); err != nil {
		return "", "", err
	}
	return rel, abs, nil
}

// hasDriveLetter catches "C:/..." on hosts where filepath.VolumeName is empty.
func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsProtected reports whether a cleaned relative path matches a protected glob.
func (w *Workspace) IsProtected(rel string) bool {
	for _, g := range w.protected {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// checkSymlinks verifies that the deepest existing ancestor of abs still
// resolves inside the workspace.
func (w *Workspace) checkSymlinks(abs string) error {
	rootReal, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	existing := abs
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return nil
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	relToRoot, err := filepath.Rel(rootReal, resolved)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s resolves outside the workspace", ErrUnsafePath, abs)
	}
	return nil
}

// ignored reports whether a relative entry is excluded from listings.
func (w *Workspace) ignored(rel string, name string, isDir bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if isDir && dependencyDirs[name] {
		return true
	}
	for _, g := range w.ignore {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
