package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gatecode-ai/gatecode/internal/fspath"
)

const globDescription = `Fast file pattern matching tool that works with any codebase size.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Returns matching file paths sorted by modification time (newest first)
- Use this tool when you need to find files by name patterns`

// GlobTool implements file pattern matching.
type GlobTool struct {
	workDir string
}

// GlobInput represents the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(deps Deps) *GlobTool {
	return &GlobTool{workDir: deps.WorkDir}
}

func (t *GlobTool) ID() string             { return "glob" }
func (t *GlobTool) Description() string    { return globDescription }
func (t *GlobTool) Visibility() Visibility { return VisibilityReadOnly }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: project root)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	searchDir := workDir
	if params.Path != "" {
		p, err := fspath.Sanitize(params.Path, workDir)
		if err != nil {
			return nil, err
		}
		searchDir = p
	}

	matches, err := doublestar.Glob(os.DirFS(searchDir), params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	type match struct {
		path    string
		modTime time.Time
	}
	files := make([]match, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(filepath.Join(searchDir, m))
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match{path: m, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	const maxFiles = 100
	truncated := false
	if len(files) > maxFiles {
		files = files[:maxFiles]
		truncated = true
	}

	if len(files) == 0 {
		return &Result{
			Title:  "Glob search",
			Output: "No files matched the pattern",
			Metadata: map[string]any{
				"pattern": params.Pattern,
				"count":   0,
			},
		}, nil
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	output := strings.Join(paths, "\n")
	if truncated {
		output += fmt.Sprintf("\n\n(Showing %d of more files)", maxFiles)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files", len(files)),
		Output: output,
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(files),
			"truncated": truncated,
		},
	}, nil
}
