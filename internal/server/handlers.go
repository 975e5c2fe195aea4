package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatecode-ai/gatecode/internal/mcp"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
	"github.com/gatecode-ai/gatecode/internal/tool"
)

// listPermissions handles GET /permission
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	pending := s.perms.ListPending()
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": pending,
	})
}

// PermissionResponse is the body of POST /permission/{permissionID}.
type PermissionResponse struct {
	Decision string `json:"decision"`
	Message  string `json:"message,omitempty"`
}

// respondPermission handles POST /permission/{permissionID}
func (s *Server) respondPermission(w http.ResponseWriter, r *http.Request) {
	permissionID := chi.URLParam(r, "permissionID")

	var req PermissionResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Decision == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "decision is required")
		return
	}

	// Unknown decisions go through unchanged; the broker fails closed on them.
	s.perms.Respond(permissionID, permission.Decision(req.Decision), req.Message)
	writeSuccess(w)
}

// ToolInfo describes one tool visible under the current mode.
type ToolInfo struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Visibility  tool.Visibility `json:"visibility"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// listTools handles GET /tool
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	current := s.modes.Current()

	visible := s.tools.Visible(current)
	infos := make([]ToolInfo, len(visible))
	for i, t := range visible {
		vis, _ := s.tools.VisibilityOf(t.ID())
		infos[i] = ToolInfo{
			ID:          t.ID(),
			Description: t.Description(),
			Visibility:  vis,
			Parameters:  t.Parameters(),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":  current,
		"tools": infos,
	})
}

// ExecuteToolRequest is the body of POST /tool/{name}.
type ExecuteToolRequest struct {
	SessionID string          `json:"sessionID,omitempty"`
	MessageID string          `json:"messageID,omitempty"`
	CallID    string          `json:"callID,omitempty"`
	Agent     string          `json:"agent,omitempty"`
	Input     json.RawMessage `json:"input"`
}

// executeTool handles POST /tool/{name}. The registry's execution boundary
// turns every failure into a response payload, so this always returns 200
// with {success, output}.
func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ExecuteToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	resp := s.tools.Execute(r.Context(), name, req.Input, &tool.Context{
		SessionID: req.SessionID,
		MessageID: req.MessageID,
		CallID:    req.CallID,
		Agent:     req.Agent,
	})

	writeJSON(w, http.StatusOK, resp)
}

// getMode handles GET /mode
func (s *Server) getMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":        s.modes.Current(),
		"docsDir":     s.modes.DocsDir(),
		"scratchFile": s.modes.ScratchFile(),
	})
}

// setMode handles PUT /mode
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	m, err := mode.Parse(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	s.modes.Set(m)
	writeJSON(w, http.StatusOK, map[string]any{"mode": m})
}

// getExpress handles GET /express
func (s *Server) getExpress(w http.ResponseWriter, r *http.Request) {
	express := s.perms.Express()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":      express.Enabled(),
		"acknowledged": express.Acknowledged(),
	})
}

// setExpress handles POST /express
func (s *Server) setExpress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled     bool `json:"enabled"`
		Acknowledge bool `json:"acknowledge,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	express := s.perms.Express()
	if req.Acknowledge {
		express.Acknowledge()
	}
	if req.Enabled {
		express.Enable()
	} else {
		express.Disable()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":      express.Enabled(),
		"acknowledged": express.Acknowledged(),
	})
}

// getMCPStatus handles GET /mcp
func (s *Server) getMCPStatus(w http.ResponseWriter, r *http.Request) {
	statuses := []mcp.ServerStatus{}
	if s.mcp != nil {
		statuses = s.mcp.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"servers": statuses,
	})
}
