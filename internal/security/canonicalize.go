package security

import (
	"fmt"
	"os"
	"path/filepath"
)

// canonicalize resolves path to an absolute, symlink-free form. Unlike a
// plain filepath.Abs+Clean, this also resolves symlinks that appear in any
// ancestor directory (e.g. a symlinked workspace root), which
// filepath.EvalSymlinks already does by walking the path component by
// component.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %s: %w", path, err)
	}
	return resolved, nil
}

// canonicalizeNearestExisting walks up from path until it finds an
// existing ancestor, canonicalizes that ancestor, then re-appends the
// non-existent suffix. This lets IsPathAllowed reason about paths that are
// about to be created (e.g. a new file under an existing directory).
func canonicalizeNearestExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var suffix []string
	dir := abs
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor found for %s", path)
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent
	}

	canonDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", err
	}
	for _, seg := range suffix {
		canonDir = filepath.Join(canonDir, seg)
	}
	return canonDir, nil
}
