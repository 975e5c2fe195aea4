package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/fspath"
	"github.com/gatecode-ai/gatecode/internal/logging"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
)

// modePolicy is the table deciding which visibility classes each mode
// exposes. Unclassified (zero) visibility only appears in the unrestricted
// rows: a tool registered without a class is gated exactly like a write
// tool. Modes absent from the table fall back to the restrictive row.
var modePolicy = map[mode.Mode]map[Visibility]bool{
	mode.ModeAuto:     {VisibilityUtility: true, VisibilityReadOnly: true, VisibilityWrite: true, VisibilityUnknown: true},
	mode.ModeWrite:    {VisibilityUtility: true, VisibilityReadOnly: true, VisibilityWrite: true, VisibilityUnknown: true},
	mode.ModeDebug:    {VisibilityUtility: true, VisibilityReadOnly: true, VisibilityWrite: true, VisibilityUnknown: true},
	mode.ModeReadOnly: {VisibilityUtility: true, VisibilityReadOnly: true},
	mode.ModeDocs:     {VisibilityUtility: true, VisibilityReadOnly: true},
	mode.ModeScratch:  {VisibilityUtility: true, VisibilityReadOnly: true},
}

// writeAllowlist names the write tools that stay available in scoped-write
// modes. The write-path gate still restricts where they may write.
var writeAllowlist = map[mode.Mode]map[string]bool{
	mode.ModeDocs:    {"write": true},
	mode.ModeScratch: {"write": true},
}

// registered pairs a tool with its compiled input validator and effective
// visibility class.
type registered struct {
	tool       Tool
	visibility Visibility
	validator  *validator
}

// Registry manages tool registration, visibility filtering and dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*registered
	order   []string
	workDir string
	modes   *mode.Controller
	perms   *permission.Broker
	doom    *permission.DoomLoopDetector
}

// NewRegistry creates an empty tool registry.
func NewRegistry(workDir string, modes *mode.Controller, perms *permission.Broker) *Registry {
	return &Registry{
		tools:   make(map[string]*registered),
		workDir: workDir,
		modes:   modes,
		perms:   perms,
		doom:    permission.NewDoomLoopDetector(),
	}
}

// Register adds a tool to the registry; re-registration overwrites. A tool
// reporting no visibility class is recorded as unclassified, which no
// restrictive mode exposes.
func (r *Registry) Register(t Tool) {
	r.RegisterFrom(t, "")
}

// RegisterFrom is Register with a source tag for dynamically added tools
// (e.g. the MCP server that contributed them).
func (r *Registry) RegisterFrom(t Tool, source string) {
	vis := t.Visibility()
	switch vis {
	case VisibilityUtility, VisibilityReadOnly, VisibilityWrite:
	default:
		logging.Debug().Str("tool", t.ID()).Msg("tool has no visibility class, gating like a write tool")
		vis = VisibilityUnknown
	}

	r.mu.Lock()
	if _, exists := r.tools[t.ID()]; !exists {
		r.order = append(r.order, t.ID())
	}
	r.tools[t.ID()] = &registered{
		tool:       t,
		visibility: vis,
		validator:  newValidator(t.Parameters()),
	}
	r.mu.Unlock()

	logging.Debug().Str("tool", t.ID()).Str("visibility", string(vis)).Msg("registered tool")

	if source != "" {
		event.Publish(event.Event{
			Type: event.ToolRegistered,
			Data: event.ToolRegisteredData{
				Name:       t.ID(),
				Visibility: string(vis),
				Source:     source,
			},
		})
	}
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[id]
	if !ok {
		return nil, false
	}
	return entry.tool, true
}

// VisibilityOf returns the effective visibility class of a registered tool.
func (r *Registry) VisibilityOf(id string) (Visibility, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[id]
	if !ok {
		return VisibilityUnknown, false
	}
	return entry.visibility, true
}

// Visible returns the tools eligible under a mode, in registration order.
func (r *Registry) Visible(m mode.Mode) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes, ok := modePolicy[m]
	if !ok {
		// Unknown modes fail closed.
		classes = map[Visibility]bool{VisibilityUtility: true, VisibilityReadOnly: true}
	}
	allowlist := writeAllowlist[m]

	tools := make([]Tool, 0, len(r.order))
	for _, id := range r.order {
		entry := r.tools[id]
		if classes[entry.visibility] || allowlist[id] {
			tools = append(tools, entry.tool)
		}
	}
	return tools
}

// IDs returns all registered tool IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// visibleUnder reports whether a tool id is dispatchable under a mode.
func (r *Registry) visibleUnder(id string, m mode.Mode) bool {
	for _, t := range r.Visible(m) {
		if t.ID() == id {
			return true
		}
	}
	return false
}

// Execute validates raw input against the tool's schema and dispatches.
// Every failure — unknown tool, mode restriction, schema violation,
// permission denial, handler error, even a panic — comes back as a
// Response with Success=false; nothing crosses this boundary uncaught.
func (r *Registry) Execute(ctx context.Context, name string, raw json.RawMessage, toolCtx *Context) (resp *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().Str("tool", name).Any("panic", rec).Msg("tool handler panicked")
			resp = &Response{Success: false, Output: fmt.Sprintf("tool %s failed: %v", name, rec)}
		}
	}()

	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &Response{Success: false, Output: fmt.Sprintf("unknown tool: %s", name)}
	}

	current := r.modes.Current()
	if !r.visibleUnder(name, current) {
		return &Response{Success: false, Output: fmt.Sprintf("tool %s is not available in %s mode", name, current)}
	}

	if err := entry.validator.validate(name, raw); err != nil {
		return &Response{Success: false, Output: err.Error()}
	}

	if toolCtx == nil {
		toolCtx = &Context{}
	}
	if toolCtx.WorkDir == "" {
		toolCtx.WorkDir = r.workDir
	}

	// A run of identical calls usually means the model is stuck; make a
	// human confirm before letting it continue.
	if toolCtx.SessionID != "" && r.doom.Check(toolCtx.SessionID, name, string(raw)) {
		err := r.perms.Ask(ctx, permission.Request{
			SessionID: toolCtx.SessionID,
			Kind:      permission.KindDoomLoop,
			Patterns:  []string{name},
			Title:     fmt.Sprintf("Repeated identical %s calls detected, continue?", name),
			MessageID: toolCtx.MessageID,
			CallID:    toolCtx.CallID,
		})
		if err != nil {
			return failure(err)
		}
	}

	result, err := entry.tool.Execute(ctx, raw, toolCtx)
	if err != nil {
		return failure(err)
	}

	return &Response{
		Success:  true,
		Output:   result.Output,
		Metadata: result.Metadata,
	}
}

// failure converts a handler error to a boundary response. The error
// taxonomy (rejection, security, restriction, validation) is preserved in
// the message but never re-raised.
func failure(err error) *Response {
	switch {
	case permission.IsRejectedError(err):
		logging.Warn().Err(err).Msg("permission denied")
	case fspath.IsSecurityError(err):
		logging.Warn().Err(err).Msg("path security violation")
	case mode.IsRestrictionError(err):
		logging.Warn().Err(err).Msg("mode restriction")
	}
	return &Response{Success: false, Output: err.Error()}
}

// ClearSession drops per-session dispatch state (doom loop history).
func (r *Registry) ClearSession(sessionID string) {
	r.doom.Clear(sessionID)
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps.WorkDir, deps.Modes, deps.Perms)

	r.Register(NewReadTool(deps))
	r.Register(NewListTool(deps))
	r.Register(NewGlobTool(deps))
	r.Register(NewGrepTool(deps))
	r.Register(NewWriteTool(deps))
	r.Register(NewEditTool(deps))
	r.Register(NewBashTool(deps))
	r.Register(NewTaskTool(deps))
	r.Register(NewTodoReadTool(deps))
	r.Register(NewTodoWriteTool(deps))
	r.Register(NewWebFetchTool(deps))

	return r
}
