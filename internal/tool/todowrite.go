package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatecode-ai/gatecode/internal/storage"
)

const todowriteDescription = `Use this tool to create and manage a structured task list for your current session.

Task states:
- pending: Task not yet started
- in_progress: Currently working on (limit to ONE task at a time)
- completed: Task finished successfully

Update task status in real-time as you work and mark tasks complete
immediately after finishing. The write replaces the whole list.`

// Todo is a single item of a session task list.
type Todo struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// TodoWriteTool manages structured task lists for sessions.
type TodoWriteTool struct {
	store *storage.Storage
}

// TodoWriteInput represents the input for the todowrite tool.
type TodoWriteInput struct {
	Todos []Todo `json:"todos"`
}

// NewTodoWriteTool creates a new todowrite tool.
func NewTodoWriteTool(deps Deps) *TodoWriteTool {
	return &TodoWriteTool{store: deps.Store}
}

func (t *TodoWriteTool) ID() string          { return "todowrite" }
func (t *TodoWriteTool) Description() string { return todowriteDescription }

// Visibility is utility: updating the plan is not a project write, and the
// list stays editable in read-only and scoped modes.
func (t *TodoWriteTool) Visibility() Visibility { return VisibilityUtility }

func (t *TodoWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "The updated todo list",
				"items": {
					"type": "object",
					"properties": {
						"id": {
							"type": "string",
							"description": "Unique identifier for the todo item"
						},
						"content": {
							"type": "string",
							"description": "Brief description of the task"
						},
						"status": {
							"type": "string",
							"description": "Current status of the task: pending, in_progress, completed"
						},
						"priority": {
							"type": "string",
							"description": "Priority level of the task: high, medium, low"
						}
					},
					"required": ["id", "content", "status", "priority"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TodoWriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if t.store == nil {
		return nil, fmt.Errorf("todo storage is not configured")
	}

	sessionID := ""
	if toolCtx != nil {
		sessionID = toolCtx.SessionID
	}
	if sessionID == "" {
		return nil, fmt.Errorf("todowrite requires a session")
	}

	if err := t.store.Put(ctx, []string{"todo", sessionID}, params.Todos); err != nil {
		return nil, fmt.Errorf("failed to update todos: %w", err)
	}

	remaining := 0
	for _, todo := range params.Todos {
		if todo.Status != "completed" {
			remaining++
		}
	}

	output, _ := json.MarshalIndent(params.Todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", remaining),
		Output: string(output),
		Metadata: map[string]any{
			"todos": params.Todos,
		},
	}, nil
}
