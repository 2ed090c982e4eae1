// Package filetool implements the FileRead/FileWrite built-in tools
// (spec §4.5): workspace-sandboxed file access with dotfile gating.
package filetool

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolve returns an absolute, cleaned path guaranteed to be within root,
// or an error if path escapes the workspace. Grounded on the teacher's
// files.Resolver (internal/tools/files/resolver.go).
func resolve(root, path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	rel, err := filepath.Rel(rootAbs, target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return target, nil
}

// isDotfile reports whether any path segment (other than "." and "..")
// begins with a dot.
func isDotfile(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == "." || seg == ".." || seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
