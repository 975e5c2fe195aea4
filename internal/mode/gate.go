package mode

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RestrictionError is returned when the current mode forbids an operation.
// It is a structured denial: the operation is aborted before any side effect.
type RestrictionError struct {
	Mode   Mode
	Path   string
	Reason string
}

func (e *RestrictionError) Error() string {
	return e.Reason
}

// IsRestrictionError checks if an error is a mode restriction.
func IsRestrictionError(err error) bool {
	_, ok := err.(*RestrictionError)
	return ok
}

// ValidateWritePath decides whether a write/edit tool may touch path under
// the current mode. path must already be sanitized; this is pure string
// validation and never touches the filesystem.
func (c *Controller) ValidateWritePath(path, workDir string) error {
	m := c.Current()

	if m.Unrestricted() {
		return nil
	}

	switch m {
	case ModeReadOnly:
		return &RestrictionError{
			Mode:   m,
			Path:   path,
			Reason: "write tools are disabled in read-only mode",
		}

	case ModeDocs:
		rel := projectRelative(path, workDir)
		prefix := c.docsDir + "/"
		if rel == c.docsDir || strings.HasPrefix(rel, prefix) {
			return nil
		}
		return &RestrictionError{
			Mode:   m,
			Path:   path,
			Reason: fmt.Sprintf("docs mode only allows writes under %s/, refusing %s", c.docsDir, path),
		}

	case ModeScratch:
		if strings.EqualFold(baseName(path), c.scratchFile) {
			return nil
		}
		return &RestrictionError{
			Mode:   m,
			Path:   path,
			Reason: fmt.Sprintf("scratch mode only allows writes to %s, refusing %s", c.scratchFile, path),
		}
	}

	// Unknown mode fails closed.
	return &RestrictionError{
		Mode:   m,
		Path:   path,
		Reason: fmt.Sprintf("writes are not permitted in mode %q", m),
	}
}

// projectRelative returns path relative to workDir with forward slashes,
// regardless of the separator style the caller used.
func projectRelative(path, workDir string) string {
	p := filepath.ToSlash(path)
	w := filepath.ToSlash(workDir)
	if w != "" {
		if rel, err := filepath.Rel(w, filepath.FromSlash(p)); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return p
}

// baseName returns the last path segment independent of separator style.
func baseName(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
