// Package agent provides subagent configurations for the task tool.
package agent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Agent describes a subagent the task tool can launch.
type Agent struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	BuiltIn     bool            `json:"builtIn" yaml:"-"`
	Tools       map[string]bool `json:"tools,omitempty" yaml:"tools,omitempty"`
	Prompt      string          `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	// ReadOnly marks agents that never modify the workspace; only these
	// may be launched from restricted planning modes.
	ReadOnly bool `json:"readOnly" yaml:"readOnly"`
}

// ToolEnabled checks if a tool is enabled for this agent.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}

	for pattern, enabled := range a.Tools {
		if matchWildcard(pattern, toolID) {
			return enabled
		}
	}

	// Default: enabled
	return true
}

// matchWildcard checks if a string matches a wildcard pattern.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}

// ExplorePrompt is the system prompt for the explore agent.
const ExplorePrompt = `You are a file search specialist. You excel at thoroughly navigating and exploring codebases.

Guidelines:
- Use Glob for broad file pattern matching
- Use Grep for searching file contents with regex
- Use Read when you know the specific file path you need to read
- Return file paths as absolute paths in your final response
- Do not create any files, or run bash commands that modify the user's system state in any way

Complete the user's search request efficiently and report your findings clearly.`

// BuiltInAgents returns the default subagent configurations.
func BuiltInAgents() map[string]*Agent {
	return map[string]*Agent{
		"general": {
			Name:        "general",
			Description: "General-purpose agent for researching complex questions and executing multi-step tasks.",
			BuiltIn:     true,
			Tools: map[string]bool{
				"*":         true,
				"todoread":  false,
				"todowrite": false,
				"task":      false, // Prevent recursive task calls
			},
		},
		"explore": {
			Name:        "explore",
			Description: "Fast agent specialized for exploring codebases: finding files by pattern, searching code, answering questions about structure.",
			BuiltIn:     true,
			Prompt:      ExplorePrompt,
			ReadOnly:    true,
			Tools: map[string]bool{
				"read": true,
				"glob": true,
				"grep": true,
				"list": true,
				"*":    false,
			},
		},
		"plan": {
			Name:        "plan",
			Description: "Planning agent for analysis and exploration without making changes.",
			BuiltIn:     true,
			Tools: map[string]bool{
				"*":         true,
				"edit":      false,
				"write":     false,
				"bash":      false,
				"todoread":  false,
				"todowrite": false,
			},
		},
	}
}
