package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gatecode-ai/gatecode/internal/fspath"
)

const readDescription = `Reads a file from the project directory.

Usage:
- The filePath parameter may be absolute or relative to the project root
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents with line numbers`

// ReadTool implements file reading.
type ReadTool struct {
	workDir string
}

// ReadInput represents the input for the read tool.
type ReadInput struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// NewReadTool creates a new read tool.
func NewReadTool(deps Deps) *ReadTool {
	return &ReadTool{workDir: deps.WorkDir}
}

func (t *ReadTool) ID() string             { return "read" }
func (t *ReadTool) Description() string    { return readDescription }
func (t *ReadTool) Visibility() Visibility { return VisibilityReadOnly }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path to the file to read"
			},
			"offset": {
				"type": "integer",
				"description": "Line number to start reading from"
			},
			"limit": {
				"type": "integer",
				"description": "Number of lines to read (default: 2000)"
			}
		},
		"required": ["filePath"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if params.Limit <= 0 {
		params.Limit = 2000
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	path, err := fspath.Sanitize(params.FilePath, workDir)
	if err != nil {
		return nil, err
	}

	// Block .env files (except allowed patterns like .env.sample, .example)
	if shouldBlockEnvFile(path) {
		return nil, fmt.Errorf("the user has blocked you from reading %s, do not make further attempts to read it", params.FilePath)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", params.FilePath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", params.FilePath)
	}

	if isBinaryFile(path) {
		return nil, fmt.Errorf("file appears to be binary")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if params.Offset > 0 && lineNum < params.Offset {
			continue
		}
		if len(lines) >= params.Limit {
			break
		}

		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))

	lastReadLine := params.Offset + len(lines)
	if lineNum > lastReadLine {
		sb.WriteString(fmt.Sprintf("\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", lastReadLine))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(End of file - total %d lines)", lineNum))
	}
	sb.WriteString("\n</file>")

	return &Result{
		Title:  fmt.Sprintf("Read %s", filepath.Base(path)),
		Output: sb.String(),
		Metadata: map[string]any{
			"file":       path,
			"lines":      len(lines),
			"totalLines": lineNum,
		},
	}, nil
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}

	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}

// shouldBlockEnvFile checks whether a file is a secrets file. Sample and
// example env files stay readable.
func shouldBlockEnvFile(filePath string) bool {
	for _, w := range []string{".env.sample", ".env.example", ".example"} {
		if strings.HasSuffix(filePath, w) {
			return false
		}
	}
	return strings.Contains(filepath.Base(filePath), ".env")
}
