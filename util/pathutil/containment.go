package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/agentd/errors"
)

// WithinRoot verifies that path resolves to a location inside root and
// returns the resolved absolute path. Symlinks in both root and path are
// evaluated before comparison, so a symlink pointing outside the root is
// rejected the same way a ../ traversal is.
func WithinRoot(root, path string) (string, error) {
	resolvedRoot, err := resolveExisting(root)
	if err != nil {
		return "", err
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(resolvedRoot, path)
	}
	abs = filepath.Clean(abs)

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", err
	}

	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) {
		return "", errors.ContainmentViolation(path, root)
	}

	return resolved, nil
}

// resolveExisting evaluates symlinks for the deepest existing ancestor of
// path and rejoins the non-existing tail. This lets containment checks work
// for paths that have not been created yet.
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var tail []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}
