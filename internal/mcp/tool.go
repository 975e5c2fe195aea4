package mcp

import (
	"context"
	"encoding/json"

	"github.com/gatecode-ai/gatecode/internal/tool"
)

// ServerToolAdapter exposes one discovered MCP tool through the tool.Tool
// interface so the registry can gate and dispatch it like a built-in.
type ServerToolAdapter struct {
	meta   ServerTool
	client *Client
}

// NewServerToolAdapter wraps a discovered tool for registration.
func NewServerToolAdapter(meta ServerTool, client *Client) *ServerToolAdapter {
	return &ServerToolAdapter{meta: meta, client: client}
}

// ID returns the prefixed tool name (serverName_toolName).
func (a *ServerToolAdapter) ID() string {
	return a.meta.Name
}

// Description returns the tool description reported by the server.
func (a *ServerToolAdapter) Description() string {
	return a.meta.Description
}

// Parameters returns the JSON Schema reported by the server.
func (a *ServerToolAdapter) Parameters() json.RawMessage {
	return a.meta.InputSchema
}

// Visibility is unclassified: nothing is known about what an external tool
// touches, so restrictive modes never see it.
func (a *ServerToolAdapter) Visibility() tool.Visibility {
	return tool.VisibilityUnknown
}

// Execute forwards the call to the owning server.
func (a *ServerToolAdapter) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	output, err := a.client.Call(ctx, a.meta.Name, input)
	if err != nil {
		return nil, err
	}

	if toolCtx != nil {
		toolCtx.SetMetadata(a.meta.Name, map[string]any{
			"type":   "mcp",
			"server": a.meta.Server,
			"tool":   a.meta.Name,
		})
	}

	return &tool.Result{
		Title:  a.meta.Name,
		Output: output,
	}, nil
}

// RegisterTools registers every discovered tool of every connected server
// into the registry, tagged with the contributing server's name.
func RegisterTools(client *Client, registry *tool.Registry) {
	if client == nil || registry == nil {
		return
	}
	for _, meta := range client.Tools() {
		registry.RegisterFrom(NewServerToolAdapter(meta, client), meta.Server)
	}
}
