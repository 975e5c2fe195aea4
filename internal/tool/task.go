package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatecode-ai/gatecode/internal/agent"
	"github.com/gatecode-ai/gatecode/internal/mode"
)

const taskDescription = `Launch a new agent to handle complex, multi-step tasks autonomously.

Available agent types:
- general: General-purpose agent for researching and exploration
- explore: Fast agent specialized for codebase exploration (read-only)
- plan: Planning agent for analysis without making changes

Usage notes:
- Each agent invocation is stateless
- In restricted modes only the explore agent may be launched`

// TaskExecutor runs a subtask with the given agent and prompt. The
// orchestration layer supplies it; without one the task tool reports the
// delegation instead of running it.
type TaskExecutor interface {
	ExecuteSubtask(ctx context.Context, sessionID, agentName, prompt string) (string, error)
}

// TaskTool allows spawning sub-agents for complex tasks.
type TaskTool struct {
	workDir  string
	agents   *agent.Registry
	modes    *mode.Controller
	executor TaskExecutor
}

// TaskInput represents the input for the task tool.
type TaskInput struct {
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
	SubagentType string `json:"subagentType"`
}

// NewTaskTool creates a new task tool.
func NewTaskTool(deps Deps) *TaskTool {
	agents := deps.Agents
	if agents == nil {
		agents = agent.NewRegistry()
	}
	return &TaskTool{
		workDir: deps.WorkDir,
		agents:  agents,
		modes:   deps.Modes,
	}
}

// SetExecutor sets the subtask executor.
func (t *TaskTool) SetExecutor(executor TaskExecutor) {
	t.executor = executor
}

func (t *TaskTool) ID() string          { return "task" }
func (t *TaskTool) Description() string { return taskDescription }

// Visibility is utility: the tool stays listed in every mode, and Execute
// narrows what it may launch instead.
func (t *TaskTool) Visibility() Visibility { return VisibilityUtility }

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {
				"type": "string",
				"description": "A short (3-5 word) description of the task"
			},
			"prompt": {
				"type": "string",
				"description": "The detailed task for the agent to perform"
			},
			"subagentType": {
				"type": "string",
				"description": "The type of specialized agent to use (general, explore, plan)"
			}
		},
		"required": ["description", "prompt", "subagentType"]
	}`)
}

func (t *TaskTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TaskInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if params.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if params.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if params.SubagentType == "" {
		return nil, fmt.Errorf("subagentType is required")
	}

	name := strings.ToLower(params.SubagentType)

	// Restricted modes may only delegate to the read-only explore agent;
	// anything else could write through the sub-agent's tool set.
	if t.modes != nil && !t.modes.Current().Unrestricted() && name != "explore" {
		return nil, &mode.RestrictionError{
			Mode: t.modes.Current(),
			Reason: fmt.Sprintf("only the explore agent may be launched in %s mode, not %s",
				t.modes.Current(), params.SubagentType),
		}
	}

	subagent, err := t.agents.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown subagent type: %s. Available types: %s",
			params.SubagentType, strings.Join(t.agents.Names(), ", "))
	}

	toolCtx.SetMetadata(params.Description, map[string]any{
		"subagent": subagent.Name,
		"status":   "starting",
	})

	if t.executor == nil {
		return &Result{
			Title:  fmt.Sprintf("Task: %s", params.Description),
			Output: fmt.Sprintf("[Subtask execution not configured]\n\nAgent: %s\nPrompt: %s", subagent.Name, params.Prompt),
			Metadata: map[string]any{
				"subagent":    subagent.Name,
				"status":      "skipped",
				"description": params.Description,
			},
		}, nil
	}

	output, err := t.executor.ExecuteSubtask(ctx, toolCtx.SessionID, subagent.Name, params.Prompt)
	if err != nil {
		return &Result{
			Title:  fmt.Sprintf("Subtask failed: %s", params.Description),
			Output: fmt.Sprintf("Error: %s", err.Error()),
			Metadata: map[string]any{
				"subagent": subagent.Name,
				"status":   "failed",
				"error":    err.Error(),
			},
		}, nil
	}

	return &Result{
		Title:  fmt.Sprintf("Completed: %s", params.Description),
		Output: output,
		Metadata: map[string]any{
			"subagent": subagent.Name,
			"status":   "completed",
		},
	}, nil
}
