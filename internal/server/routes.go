//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// API v1 routes
	s.mux.HandleFunc("GET /v1/openapi.json", s.handleOpenAPI)
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/threads", s.handleCreateThread)
	s.mux.HandleFunc("POST /v1/threads/{id}/messages", s.handleMessage)
	s.mux.HandleFunc("GET /v1/threads/{id}/history", s.handleHistory)
	s.mux.HandleFunc("DELETE /v1/threads/{id}", s.handleResetThread)
}
