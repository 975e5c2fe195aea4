package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

const editDescription = `Performs exact string replacements in files.

Usage:
- The filePath parameter may be absolute or relative to the project root
- The oldString must exist in the file (exact match required)
- The newString will replace oldString
- Use replaceAll to replace all occurrences
- The edit will FAIL if oldString is not unique (unless using replaceAll)`

// EditTool implements file editing.
type EditTool struct {
	workDir string
	perms   *permission.Broker
	modes   *mode.Controller
}

// EditInput represents the input for the edit tool.
type EditInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(deps Deps) *EditTool {
	return &EditTool{workDir: deps.WorkDir, perms: deps.Perms, modes: deps.Modes}
}

func (t *EditTool) ID() string             { return "edit" }
func (t *EditTool) Description() string    { return editDescription }
func (t *EditTool) Visibility() Visibility { return VisibilityWrite }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path to the file to edit"
			},
			"oldString": {
				"type": "string",
				"description": "The exact text to replace"
			},
			"newString": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replaceAll": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if params.OldString == params.NewString {
		return nil, fmt.Errorf("oldString and newString must be different")
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	path, err := gateWrite(ctx, t.perms, t.modes, params.FilePath, workDir, toolCtx)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)

	var newText string
	var count int
	var note string

	switch count = strings.Count(text, params.OldString); {
	case count == 0:
		newText, count, note, err = fuzzyReplace(text, params)
		if err != nil {
			return nil, err
		}
	case count > 1 && !params.ReplaceAll:
		return nil, fmt.Errorf("oldString appears %d times in file. Use replaceAll or provide more context", count)
	case params.ReplaceAll:
		newText = strings.ReplaceAll(text, params.OldString, params.NewString)
	default:
		newText = strings.Replace(text, params.OldString, params.NewString, 1)
		count = 1
	}

	if err := os.WriteFile(path, []byte(newText), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path},
	})

	diff, additions, deletions := diffMetadata(path, text, newText, workDir)

	output := fmt.Sprintf("Replaced %d occurrence(s)", count)
	if note != "" {
		output += " " + note
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", filepath.Base(path)),
		Output: output,
		Metadata: map[string]any{
			"file":         path,
			"replacements": count,
			"diff":         diff,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

// fuzzyReplace attempts to find similar text when exact match fails: first
// with line-ending normalization, then by Levenshtein similarity over line
// blocks of the same height as oldString.
func fuzzyReplace(text string, params EditInput) (newText string, count int, note string, err error) {
	normalizedOld := normalizeLineEndings(params.OldString)
	normalizedText := normalizeLineEndings(text)

	if strings.Contains(normalizedText, normalizedOld) {
		return strings.Replace(normalizedText, normalizedOld, params.NewString, 1),
			1, "(with line ending normalization)", nil
	}

	match, sim := findBestMatch(text, params.OldString)
	if match != "" && sim >= 0.7 {
		return strings.Replace(text, match, params.NewString, 1),
			1, fmt.Sprintf("(%.0f%% similarity)", sim*100), nil
	}

	return "", 0, "", fmt.Errorf("oldString not found in file. The content may have changed or the string doesn't exist")
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// findBestMatch finds the substring most similar to target.
func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	bestMatch := ""
	bestSim := 0.0

	if len(targetLines) == 1 {
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSim {
				bestSim = sim
				bestMatch = line
			}
		}
		return bestMatch, bestSim
	}

	height := len(targetLines)
	for i := 0; i <= len(lines)-height; i++ {
		block := strings.Join(lines[i:i+height], "\n")
		if sim := similarity(block, target); sim > bestSim {
			bestSim = sim
			bestMatch = block
		}
	}
	return bestMatch, bestSim
}

// similarity calculates normalized Levenshtein similarity.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Cap the quadratic distance computation for extreme inputs.
	if len(a) > 10000 || len(b) > 10000 {
		return float64(min(len(a), len(b))) / float64(max(len(a), len(b)))
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(max(len(a), len(b)))
}
