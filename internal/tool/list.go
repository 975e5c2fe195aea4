package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gatecode-ai/gatecode/internal/fspath"
)

const listDescription = `Lists files and directories in a specified path.

Usage:
- Returns file names, types (file/directory), and sizes
- Useful for exploring directory structure`

// ListTool implements directory listing.
type ListTool struct {
	workDir string
}

// ListInput represents the input for the list tool.
type ListInput struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

var defaultIgnorePatterns = []string{
	"node_modules/",
	"__pycache__/",
	".git/",
	"dist/",
	"build/",
	"target/",
	"vendor/",
	".idea/",
	".vscode/",
	".cache/",
	"tmp/",
	".venv/",
	"venv/",
}

// NewListTool creates a new list tool.
func NewListTool(deps Deps) *ListTool {
	return &ListTool{workDir: deps.WorkDir}
}

func (t *ListTool) ID() string             { return "list" }
func (t *ListTool) Description() string    { return listDescription }
func (t *ListTool) Visibility() Visibility { return VisibilityReadOnly }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "The directory to list, relative to the project root"
			},
			"ignore": {
				"type": "array",
				"items": {"type": "string"},
				"description": "List of glob patterns to ignore"
			}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ListInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	listPath := workDir
	if params.Path != "" {
		p, err := fspath.Sanitize(params.Path, workDir)
		if err != nil {
			return nil, err
		}
		listPath = p
	}

	ignorePatterns := append([]string{}, defaultIgnorePatterns...)
	ignorePatterns = append(ignorePatterns, params.Ignore...)

	entries, err := os.ReadDir(listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var sb strings.Builder
	count := 0
	for _, entry := range entries {
		if shouldIgnore(entry.Name(), entry.IsDir(), ignorePatterns) {
			continue
		}
		count++

		if entry.IsDir() {
			fmt.Fprintf(&sb, "[dir ] %s\n", entry.Name())
			continue
		}
		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&sb, "[file] %s (%d bytes)\n", entry.Name(), size)
	}

	return &Result{
		Title:  fmt.Sprintf("Listed %d items", count),
		Output: sb.String(),
		Metadata: map[string]any{
			"path":  listPath,
			"count": count,
		},
	}, nil
}

// shouldIgnore checks if a file/directory should be ignored based on patterns.
func shouldIgnore(name string, isDir bool, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if isDir && name == strings.TrimSuffix(pattern, "/") {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
