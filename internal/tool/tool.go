// Package tool provides the tool framework: the registry, mode-aware
// visibility filtering, input validation, and the built-in tools.
package tool

import (
	"context"
	"encoding/json"

	"github.com/gatecode-ai/gatecode/internal/agent"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
	"github.com/gatecode-ai/gatecode/internal/storage"
)

// Visibility classifies a tool independently of its schema. The class
// decides under which modes the tool is exposed to the agent.
type Visibility string

const (
	// VisibilityUnknown is the zero value. The registry gates unclassified
	// tools like write tools, so they never appear in a restrictive mode
	// by accident.
	VisibilityUnknown Visibility = ""
	// VisibilityUtility tools are visible in every mode.
	VisibilityUtility Visibility = "utility"
	// VisibilityReadOnly tools never modify the workspace.
	VisibilityReadOnly Visibility = "readonly"
	// VisibilityWrite tools modify the filesystem or run commands.
	VisibilityWrite Visibility = "write"
)

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Visibility returns the tool's visibility class.
	Visibility() Visibility

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context provides execution context to tools.
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	Agent     string
	WorkDir   string
	Extra     map[string]any

	// Metadata callback for real-time updates
	OnMetadata func(title string, meta map[string]any)
}

// SetMetadata updates tool execution metadata.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// Result represents the output of a successful tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is what crosses the execution boundary. Failure is always
// represented as Success=false with a human-readable Output; no error or
// panic escapes Registry.Execute.
type Response struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Deps bundles the collaborators shared by the built-in tools.
type Deps struct {
	WorkDir string
	Perms   *permission.Broker
	Modes   *mode.Controller
	Store   *storage.Storage
	Agents  *agent.Registry
}
