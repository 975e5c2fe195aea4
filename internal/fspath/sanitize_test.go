package fspath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonBase gives the symlink-resolved form of a test dir (t.TempDir is a
// symlink on some platforms, e.g. /tmp on macOS).
func canonBase(t *testing.T) string {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return base
}

func TestSanitize_RelativeInsideBase(t *testing.T) {
	base := canonBase(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, "file.txt"), []byte("x"), 0644))

	got, err := Sanitize("file.txt", base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "file.txt"), got)
}

func TestSanitize_TraversalRejected(t *testing.T) {
	base := canonBase(t)

	_, err := Sanitize("a/../../etc/passwd", base)
	require.Error(t, err)
	secErr, ok := err.(*SecurityError)
	require.True(t, ok, "expected *SecurityError, got %T", err)
	assert.Equal(t, KindTraversal, secErr.Kind)
	assert.True(t, IsSecurityError(err))
}

func TestSanitize_AbsoluteOutsideBaseRejected(t *testing.T) {
	base := canonBase(t)

	_, err := Sanitize("/etc/passwd", base)
	require.Error(t, err)
	assert.True(t, IsSecurityError(err))
}

func TestSanitize_NonexistentLeafAccepted(t *testing.T) {
	base := canonBase(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "subdir"), 0755))

	got, err := Sanitize("subdir/new.txt", base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "subdir", "new.txt"), got)
}

func TestSanitize_NonexistentDeepPathAccepted(t *testing.T) {
	base := canonBase(t)

	got, err := Sanitize("a/b/c/new.txt", base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "a", "b", "c", "new.txt"), got)
}

func TestSanitize_SymlinkEscapeRejected(t *testing.T) {
	base := canonBase(t)
	outside := canonBase(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "link")))

	_, err := Sanitize("link/file.txt", base)
	require.Error(t, err)
	secErr, ok := err.(*SecurityError)
	require.True(t, ok, "expected *SecurityError, got %T", err)
	assert.Equal(t, KindSymlinkBypass, secErr.Kind)
}

func TestSanitize_SymlinkInsideBaseAccepted(t *testing.T) {
	base := canonBase(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "real"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(base, "real"), filepath.Join(base, "alias")))

	got, err := Sanitize("alias/file.txt", base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "real", "file.txt"), got)
}

func TestSanitize_BaseItselfAllowed(t *testing.T) {
	base := canonBase(t)

	got, err := Sanitize(".", base)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestSanitize_EmptyBaseUsesWorkingDirectory(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	resolvedCwd, err := filepath.EvalSymlinks(cwd)
	require.NoError(t, err)

	got, err := Sanitize("sanitize.go", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolvedCwd, "sanitize.go"), got)
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		want bool
	}{
		{"/work/a.txt", "/work", true},
		{"/work", "/work", true},
		{"/work/sub/a.txt", "/work", true},
		{"/other/a.txt", "/work", false},
		{"/work/../etc", "/work", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Within(tt.path, tt.dir), "Within(%q, %q)", tt.path, tt.dir)
	}
}
