package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/fspath"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

func writeDeps(t *testing.T) (Deps, string) {
	t.Helper()
	workDir := canonDir(t)
	return Deps{
		WorkDir: workDir,
		Perms:   permission.NewBroker(),
		Modes:   mode.NewController(),
	}, workDir
}

func writeInput(path, content string) json.RawMessage {
	raw, _ := json.Marshal(WriteInput{FilePath: path, Content: content})
	return raw
}

func TestWriteTool_WritesFileAfterApproval(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	edited := make(chan event.FileEditedData, 1)
	unsub := event.Subscribe(event.FileEdited, func(e event.Event) {
		if data, ok := e.Data.(event.FileEditedData); ok {
			edited <- data
		}
	})
	defer unsub()

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	result, err := tl.Execute(context.Background(), writeInput("notes.txt", "hello\n"), toolCtx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "notes.txt")

	data, err := os.ReadFile(filepath.Join(workDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	select {
	case data := <-edited:
		assert.Equal(t, filepath.Join(workDir, "notes.txt"), data.File)
	default:
		t.Fatal("expected a file.edited event")
	}
}

func TestWriteTool_RejectionAbortsBeforeWrite(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionReject, "not now")

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), writeInput("notes.txt", "hello\n"), toolCtx)
	require.Error(t, err)
	assert.True(t, permission.IsRejectedError(err))
	assert.Equal(t, "Permission denied: not now", err.Error())

	_, statErr := os.Stat(filepath.Join(workDir, "notes.txt"))
	assert.True(t, os.IsNotExist(statErr), "file written despite rejection")
}

func TestWriteTool_TraversalRejected(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), writeInput("../outside.txt", "x"), toolCtx)
	require.Error(t, err)
	assert.True(t, fspath.IsSecurityError(err))
}

func TestWriteTool_ReadOnlyModeDenied(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	deps.Modes.Set(mode.ModeReadOnly)

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), writeInput("notes.txt", "x"), toolCtx)
	require.Error(t, err)
	assert.True(t, mode.IsRestrictionError(err))
	assert.Contains(t, err.Error(), "read-only")
}

func TestWriteTool_DocsModeScopesWrites(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	deps.Modes.Set(mode.ModeDocs)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), writeInput("docs/guide.md", "# Guide\n"), toolCtx)
	require.NoError(t, err)

	_, err = tl.Execute(context.Background(), writeInput("src/main.go", "package main\n"), toolCtx)
	require.Error(t, err)
	assert.True(t, mode.IsRestrictionError(err))
	assert.Contains(t, err.Error(), "src/main.go")
}

func TestWriteTool_ScratchModeSingleFile(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	deps.Modes.Set(mode.ModeScratch)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	_, err := tl.Execute(context.Background(), writeInput("plan.MD", "steps\n"), toolCtx)
	require.NoError(t, err, "scratch file match is case-insensitive")

	_, err = tl.Execute(context.Background(), writeInput("notes.txt", "x"), toolCtx)
	require.Error(t, err)
	assert.True(t, mode.IsRestrictionError(err))
}

func TestWriteTool_ApprovalMemoizedAcrossCalls(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)

	asked := 0
	unsub := event.Subscribe(event.PermissionAsked, func(e event.Event) {
		if data, ok := e.Data.(event.PermissionAskedData); ok {
			asked++
			deps.Perms.Respond(data.ID, permission.DecisionAlways, "")
		}
	})
	defer unsub()

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	for i := 0; i < 3; i++ {
		_, err := tl.Execute(context.Background(), writeInput("notes.txt", fmt.Sprintf("rev %d\n", i)), toolCtx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, asked, "always decision should cover repeat edits of the same file")
}

func TestWriteTool_DiffMetadata(t *testing.T) {
	event.Reset()
	deps, workDir := writeDeps(t)
	autoRespond(t, deps.Perms, permission.DecisionAlways, "")

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "notes.txt"), []byte("old\n"), 0o644))

	tl := NewWriteTool(deps)
	toolCtx := &Context{SessionID: "sess-w", WorkDir: workDir}

	result, err := tl.Execute(context.Background(), writeInput("notes.txt", "new\n"), toolCtx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata["additions"])
	assert.Equal(t, 1, result.Metadata["deletions"])
	assert.Contains(t, result.Metadata["diff"].(string), "notes.txt")
}
