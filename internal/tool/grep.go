package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gatecode-ai/gatecode/internal/fspath"
)

const grepDescription = `A content search tool supporting full regex syntax.

Usage:
- Supports full regex syntax (e.g., "log.*Error", "function\\s+\\w+")
- Filter files with the include parameter (e.g., "*.js", "**/*.tsx")
- Returns matching lines with file paths and line numbers`

const maxGrepMatches = 100

// GrepTool implements content search.
type GrepTool struct {
	workDir string
}

// GrepInput represents the input for the grep tool.
type GrepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

// NewGrepTool creates a new grep tool.
func NewGrepTool(deps Deps) *GrepTool {
	return &GrepTool{workDir: deps.WorkDir}
}

func (t *GrepTool) ID() string             { return "grep" }
func (t *GrepTool) Description() string    { return grepDescription }
func (t *GrepTool) Visibility() Visibility { return VisibilityReadOnly }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The regex pattern to search for in file contents"
			},
			"path": {
				"type": "string",
				"description": "The directory to search in. Defaults to the project root."
			},
			"include": {
				"type": "string",
				"description": "File pattern to include in the search (e.g. \"*.js\", \"**/*.tsx\")"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GrepInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
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

	var sb strings.Builder
	count := 0
	truncated := false

	walkErr := filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if shouldIgnore(d.Name(), true, defaultIgnorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(searchDir, path)
		if err != nil {
			rel = path
		}
		if params.Include != "" {
			matched, _ := doublestar.Match(params.Include, filepath.ToSlash(rel))
			if !matched {
				// "*.go" style patterns should match in subdirectories too.
				if base, _ := doublestar.Match(params.Include, d.Name()); !base {
					return nil
				}
			}
		}

		if isBinaryFile(path) {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			if count >= maxGrepMatches {
				truncated = true
				return filepath.SkipAll
			}
			count++
			fmt.Fprintf(&sb, "%s:%d: %s\n", rel, lineNum, line)
		}
		return nil
	})
	if walkErr != nil && walkErr == ctx.Err() {
		return nil, walkErr
	}

	if count == 0 {
		return &Result{
			Title:  "Search results",
			Output: "No matches found",
			Metadata: map[string]any{
				"pattern": params.Pattern,
				"count":   0,
			},
		}, nil
	}

	if truncated {
		sb.WriteString(fmt.Sprintf("\n(Showing %d of more matches)", maxGrepMatches))
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d matches", count),
		Output: sb.String(),
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     count,
			"truncated": truncated,
		},
	}, nil
}
