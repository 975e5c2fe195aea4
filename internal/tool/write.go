package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/fspath"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

const writeDescription = `Writes content to a file in the project directory.

Usage:
- The filePath parameter may be absolute or relative to the project root
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- ALWAYS prefer editing existing files over creating new ones`

// WriteTool implements file writing.
type WriteTool struct {
	workDir string
	perms   *permission.Broker
	modes   *mode.Controller
}

// WriteInput represents the input for the write tool.
type WriteInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(deps Deps) *WriteTool {
	return &WriteTool{workDir: deps.WorkDir, perms: deps.Perms, modes: deps.Modes}
}

func (t *WriteTool) ID() string             { return "write" }
func (t *WriteTool) Description() string    { return writeDescription }
func (t *WriteTool) Visibility() Visibility { return VisibilityWrite }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path to the file to write"
			},
			"content": {
				"type": "string",
				"description": "The content to write to the file"
			}
		},
		"required": ["filePath", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	path, err := gateWrite(ctx, t.perms, t.modes, params.FilePath, workDir, toolCtx)
	if err != nil {
		return nil, err
	}

	before := ""
	if data, err := os.ReadFile(path); err == nil {
		before = string(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path},
	})

	diff, additions, deletions := diffMetadata(path, before, params.Content, workDir)

	return &Result{
		Title:  fmt.Sprintf("Wrote %s", filepath.Base(path)),
		Output: fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), path),
		Metadata: map[string]any{
			"file":      path,
			"bytes":     len(params.Content),
			"diff":      diff,
			"additions": additions,
			"deletions": deletions,
		},
	}, nil
}

// gateWrite runs the shared write gate: the path is sanitized against the
// project root, checked against the current mode, then put to the broker as
// an edit request. Returns the sanitized absolute path.
func gateWrite(ctx context.Context, perms *permission.Broker, modes *mode.Controller, raw, workDir string, toolCtx *Context) (string, error) {
	path, err := fspath.Sanitize(raw, workDir)
	if err != nil {
		return "", err
	}

	if modes != nil {
		if err := modes.ValidateWritePath(path, workDir); err != nil {
			return "", err
		}
	}

	if perms != nil && toolCtx != nil {
		rel := path
		if r, err := filepath.Rel(workDir, path); err == nil {
			rel = filepath.ToSlash(r)
		}
		err := perms.Ask(ctx, permission.Request{
			SessionID: toolCtx.SessionID,
			Kind:      permission.KindEdit,
			Patterns:  []string{rel},
			Title:     fmt.Sprintf("Edit %s", rel),
			MessageID: toolCtx.MessageID,
			CallID:    toolCtx.CallID,
			Metadata:  map[string]any{"file": path},
		})
		if err != nil {
			return "", err
		}
	}

	return path, nil
}
