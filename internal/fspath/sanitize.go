// Package fspath canonicalizes untrusted file paths against a base directory.
//
// Every user-supplied path must pass through Sanitize before any read, write
// or stat call. The check runs in two stages: a lexical pre-check catches
// plain ".." traversal, and a post-canonicalization containment check catches
// escapes through symlinked intermediate directories, which a lexically safe
// path can still reach.
package fspath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecurityError kinds.
const (
	KindTraversal     = "path traversal"
	KindSymlinkBypass = "symlink bypass"
)

// SecurityError is returned when a path escapes its base directory.
// It is always fatal to the requested operation and never downgraded.
type SecurityError struct {
	Kind string
	Path string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

// IsSecurityError checks if an error is a path security violation.
func IsSecurityError(err error) bool {
	_, ok := err.(*SecurityError)
	return ok
}

// Sanitize resolves raw against base and returns the canonical absolute path,
// or a SecurityError if the path escapes base. base defaults to the current
// working directory when empty.
//
// The leaf of the path does not need to exist: canonicalization walks up to
// the first existing ancestor, resolves symlinks there, and reattaches the
// missing segments. This lets callers sanitize a write target that is about
// to be created.
func Sanitize(raw, base string) (string, error) {
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		base = cwd
	}
	base = filepath.Clean(base)

	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(base, candidate)
	}
	candidate = filepath.Clean(candidate)

	// Lexical pre-check: a relative form starting with ".." already escapes.
	rel, err := filepath.Rel(base, candidate)
	if err != nil || escapes(rel) {
		return "", &SecurityError{Kind: KindTraversal, Path: raw}
	}

	resolved := canonicalize(candidate)
	resolvedBase := canonicalize(base)

	if resolved != resolvedBase && !strings.HasPrefix(resolved, resolvedBase+string(filepath.Separator)) {
		return "", &SecurityError{Kind: KindSymlinkBypass, Path: raw}
	}
	return resolved, nil
}

// canonicalize resolves symlinks in path, tolerating a non-existent leaf:
// it strips trailing segments until it finds an ancestor that exists,
// resolves that, and reattaches the stripped segments unchanged. If symlink
// resolution fails (e.g. permission error), the lexical path is used as-is.
func canonicalize(path string) string {
	existing := path
	var stripped []string

	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		stripped = append([]string{filepath.Base(existing)}, stripped...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved = existing
	}
	if len(stripped) == 0 {
		return resolved
	}
	return filepath.Join(append([]string{resolved}, stripped...)...)
}

// escapes reports whether a cleaned relative path points outside its base.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Within reports whether path is equal to or nested under dir. Both paths
// are compared lexically after cleaning; no symlink resolution is done.
func Within(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return !escapes(rel) && !filepath.IsAbs(rel)
}
