package permission

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matches reports whether an approved pattern covers a requested pattern.
// Three pattern dialects are understood:
//
//   - "*" covers everything under its kind
//   - command patterns ("git commit *", "npm *") cover requests by prefix
//   - path globs ("docs/**", "src/*.go") cover requests via doublestar
//
// Exact equality is checked by the caller; Matches only handles wildcards.
func Matches(approved, requested string) bool {
	if approved == "*" {
		return true
	}
	if !strings.ContainsAny(approved, "*?[{") {
		return false
	}

	// Command pattern: trailing " *" covers any continuation of the prefix.
	if prefix, ok := strings.CutSuffix(approved, " *"); ok {
		if requested == prefix || strings.HasPrefix(requested, prefix+" ") {
			return true
		}
	}

	if ok, err := doublestar.Match(approved, requested); err == nil && ok {
		return true
	}
	return false
}

// Command represents a parsed shell command with its arguments.
type Command struct {
	Name       string   // command name (e.g. "rm", "git")
	Args       []string // command arguments
	Subcommand string   // first non-flag argument (e.g. "commit" in "git commit")
}

// BuildPattern creates an approval pattern for a command.
// For "git commit -m msg" it returns "git commit *"; for "ls -la", "ls *".
func BuildPattern(cmd Command) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// BuildPatterns creates deduplicated approval patterns for multiple commands.
func BuildPatterns(commands []Command) []string {
	seen := make(map[string]bool)
	var patterns []string

	for _, cmd := range commands {
		// "cd" only changes the shell's own directory; no approval needed.
		if cmd.Name == "cd" {
			continue
		}

		pattern := BuildPattern(cmd)
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}

	return patterns
}
