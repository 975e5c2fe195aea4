package tool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffMetadata calculates a unified diff and line counts to enrich the
// metadata of write/edit results. Returns the patch text (with file headers
// when a path is given), added line count and deleted line count.
func diffMetadata(path, before, after, baseDir string) (string, int, int) {
	if before == after {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	additions, deletions := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}

	patches := dmp.PatchMake(before, diffs)
	text := dmp.PatchToText(patches)
	if text == "" {
		return "", additions, deletions
	}

	rel := path
	if baseDir != "" {
		if r, err := filepath.Rel(baseDir, path); err == nil {
			rel = r
		}
	}

	var sb strings.Builder
	if rel != "" {
		fmt.Fprintf(&sb, "--- %s\n+++ %s\n", rel, rel)
	}
	sb.WriteString(text)
	return sb.String(), additions, deletions
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
