package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gatecode-ai/gatecode/internal/storage"
)

const todoreadDescription = `Reads the current session's todo list.

Returns the structured task list created with todowrite, or an empty list
when nothing has been recorded yet.`

// TodoReadTool reads structured task lists for sessions.
type TodoReadTool struct {
	store *storage.Storage
}

// NewTodoReadTool creates a new todoread tool.
func NewTodoReadTool(deps Deps) *TodoReadTool {
	return &TodoReadTool{store: deps.Store}
}

func (t *TodoReadTool) ID() string             { return "todoread" }
func (t *TodoReadTool) Description() string    { return todoreadDescription }
func (t *TodoReadTool) Visibility() Visibility { return VisibilityUtility }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if t.store == nil {
		return nil, fmt.Errorf("todo storage is not configured")
	}

	sessionID := ""
	if toolCtx != nil {
		sessionID = toolCtx.SessionID
	}
	if sessionID == "" {
		return nil, fmt.Errorf("todoread requires a session")
	}

	var todos []Todo
	if err := t.store.Get(ctx, []string{"todo", sessionID}, &todos); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to read todos: %w", err)
		}
	}

	if len(todos) == 0 {
		return &Result{
			Title:    "No todos",
			Output:   "The todo list is empty",
			Metadata: map[string]any{"count": 0},
		}, nil
	}

	output, _ := json.MarshalIndent(todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", len(todos)),
		Output: string(output),
		Metadata: map[string]any{
			"count": len(todos),
			"todos": todos,
		},
	}, nil
}
