package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

func editInput(path, oldStr, newStr string, replaceAll bool) json.RawMessage {
	raw, _ := json.Marshal(EditInput{
		FilePath:   path,
		OldString:  oldStr,
		NewString:  newStr,
		ReplaceAll: replaceAll,
	})
	return raw
}

func seedFile(t *testing.T, workDir, name, content string) string {
	t.Helper()
	path := filepath.Join(workDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEditTool_ExactReplace(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	path := seedFile(t, workDir, "main.go", "package main\n\nfunc main() {}\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	result, err := tl.Execute(context.Background(),
		editInput("main.go", "func main() {}", "func main() { run() }", false), toolCtx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "Replaced 1 occurrence")

	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "run()")
}

func TestEditTool_AmbiguousMatchFails(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	seedFile(t, workDir, "dup.txt", "x\nx\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), editInput("dup.txt", "x", "y", false), toolCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replaceAll")
}

func TestEditTool_ReplaceAll(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	path := seedFile(t, workDir, "dup.txt", "x\nx\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	result, err := tl.Execute(context.Background(), editInput("dup.txt", "x", "y", true), toolCtx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "Replaced 2 occurrence(s)")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "y\ny\n", string(data))
}

func TestEditTool_FuzzyFallback(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	path := seedFile(t, workDir, "cfg.txt", "retry_limit = 31\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	// Near-match: the requested oldString differs by one character.
	result, err := tl.Execute(context.Background(),
		editInput("cfg.txt", "retry_limit = 30", "retry_limit = 5", false), toolCtx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "similarity")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "retry_limit = 5\n", string(data))
}

func TestEditTool_NotFound(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	seedFile(t, workDir, "a.txt", "alpha\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	_, err := tl.Execute(context.Background(),
		editInput("a.txt", "completely different text", "z", false), toolCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEditTool_SameStringsRejected(t *testing.T) {
	deps, workDir := writeDeps(t)
	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), editInput("a.txt", "same", "same", false), toolCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestEditTool_ReadOnlyModeDenied(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	deps.Modes.Set(mode.ModeReadOnly)

	seedFile(t, workDir, "a.txt", "alpha\n")

	tl := NewEditTool(deps)
	toolCtx := &Context{SessionID: "sess-e", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), editInput("a.txt", "alpha", "beta", false), toolCtx)
	require.Error(t, err)
	assert.True(t, mode.IsRestrictionError(err))
}

func TestFindBestMatch_MultiLine(t *testing.T) {
	text := "one\ntwo\nthree\nfour\n"
	match, sim := findBestMatch(text, "two\nthre")
	assert.Equal(t, "two\nthree", match)
	assert.Greater(t, sim, 0.7)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("a", ""))
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.InDelta(t, 0.666, similarity("abc", "abd"), 0.01)
}
