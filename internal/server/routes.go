package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Permissions
	r.Route("/permission", func(r chi.Router) {
		r.Get("/", s.listPermissions)
		r.Post("/{permissionID}", s.respondPermission)
	})

	// Tools
	r.Route("/tool", func(r chi.Router) {
		r.Get("/", s.listTools)
		r.Post("/{name}", s.executeTool)
	})

	// Mode
	r.Get("/mode", s.getMode)
	r.Put("/mode", s.setMode)

	// Express bypass
	r.Get("/express", s.getExpress)
	r.Post("/express", s.setExpress)

	// MCP server status
	r.Get("/mcp", s.getMCPStatus)

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
