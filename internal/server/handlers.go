//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fleetiq/claims-analyst/internal/pipeline"
)

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ThreadResponse is the response for the create thread endpoint.
type ThreadResponse struct {
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRequest is the request body for posting a message to a thread.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the response for a processed message.
type MessageResponse struct {
	Response       string                    `json:"response"`
	WorkflowStatus pipeline.WorkflowStatus   `json:"workflow_status"`
	SQL            string                    `json:"sql,omitempty"`
	SQLSource      pipeline.SQLSource        `json:"sql_source,omitempty"`
	Execution      *pipeline.ExecutionResult `json:"execution,omitempty"`
	Insights       *pipeline.Insights        `json:"insights,omitempty"`
}

// HistoryResponse is the response for the thread history endpoint.
type HistoryResponse struct {
	ThreadID   string                      `json:"thread_id"`
	Turns      []pipeline.ConversationTurn `json:"turns"`
	SQLHistory []pipeline.SQLHistoryEntry  `json:"sql_history"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /v1/health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleCreateThread handles the POST /v1/threads endpoint.
func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	session := s.threads.CreateThread()
	s.respondJSON(w, http.StatusCreated, ThreadResponse{
		ThreadID:  session.ID(),
		CreatedAt: session.CreatedAt(),
	})
}

// handleMessage handles the POST /v1/threads/{id}/messages endpoint.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if threadID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "thread id required")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return
	}

	state, err := s.threads.Process(r.Context(), threadID, req.Text)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, "THREAD_NOT_FOUND",
				"thread not found: "+threadID)
			return
		}
		s.logger.Error("message processing failed",
			"thread_id", threadID,
			"error", err)
		s.respondError(w, http.StatusInternalServerError, "EXECUTION_ERROR", err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, MessageResponse{
		Response:       state.FinalResponse,
		WorkflowStatus: state.WorkflowStatus,
		SQL:            state.GeneratedSQL,
		SQLSource:      state.SQLSource,
		Execution:      state.Execution,
		Insights:       state.Insights,
	})
}

// handleHistory handles the GET /v1/threads/{id}/history endpoint.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if threadID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "thread id required")
		return
	}

	turns, err := s.threads.History(threadID)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, "THREAD_NOT_FOUND",
				"thread not found: "+threadID)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	sqlHistory, err := s.threads.SQLHistory(threadID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, HistoryResponse{
		ThreadID:   threadID,
		Turns:      turns,
		SQLHistory: sqlHistory,
	})
}

// handleResetThread handles the DELETE /v1/threads/{id} endpoint.
func (s *Server) handleResetThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if threadID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "thread id required")
		return
	}

	if err := s.threads.ResetThread(threadID); err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, "THREAD_NOT_FOUND",
				"thread not found: "+threadID)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	// RFC 8631: Link header for API documentation discovery
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
