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
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get    *OpenAPIOperation `json:"get,omitempty"`
	Post   *OpenAPIOperation `json:"post,omitempty"`
	Put    *OpenAPIOperation `json:"put,omitempty"`
	Delete *OpenAPIOperation `json:"delete,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	spec := BuildOpenAPISpec()
	s.respondJSON(w, http.StatusOK, spec)
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec() OpenAPISpec {
	errorContent := map[string]OpenAPIMediaType{
		"application/json": {
			Schema: OpenAPISchema{Ref: "#/components/schemas/ErrorResponse"},
		},
	}
	threadIDParam := OpenAPIParameter{
		Name:        "id",
		In:          "path",
		Description: "Thread identifier",
		Required:    true,
		Schema:      OpenAPISchema{Type: "string"},
	}

	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "FleetIQ Claims Analyst API",
			Description: "REST API for conversational analysis of fleet claims data",
			Version:     "1.0.0",
		},
		Servers: []OpenAPIServer{
			{
				URL:         "/v1",
				Description: "API v1",
			},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Check if the server is running and healthy",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Server is healthy",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{
										Ref: "#/components/schemas/HealthResponse",
									},
								},
							},
						},
					},
				},
			},
			"/threads": {
				Post: &OpenAPIOperation{
					Summary:     "Create thread",
					Description: "Create a new conversation thread",
					OperationID: "createThread",
					Tags:        []string{"Threads"},
					Responses: map[string]OpenAPIResponse{
						"201": {
							Description: "Thread created",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{
										Ref: "#/components/schemas/ThreadResponse",
									},
								},
							},
						},
					},
				},
			},
			"/threads/{id}/messages": {
				Post: &OpenAPIOperation{
					Summary:     "Send message",
					Description: "Process a user message on a conversation thread",
					OperationID: "sendMessage",
					Tags:        []string{"Threads"},
					Parameters:  []OpenAPIParameter{threadIDParam},
					RequestBody: &OpenAPIRequestBody{
						Description: "User message",
						Required:    true,
						Content: map[string]OpenAPIMediaType{
							"application/json": {
								Schema: OpenAPISchema{
									Ref: "#/components/schemas/MessageRequest",
								},
							},
						},
					},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Message processed",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{
										Ref: "#/components/schemas/MessageResponse",
									},
								},
							},
						},
						"400": {Description: "Invalid request", Content: errorContent},
						"404": {Description: "Thread not found", Content: errorContent},
						"500": {Description: "Server error", Content: errorContent},
					},
				},
			},
			"/threads/{id}/history": {
				Get: &OpenAPIOperation{
					Summary:     "Get history",
					Description: "Get the full conversation log for a thread",
					OperationID: "getHistory",
					Tags:        []string{"Threads"},
					Parameters:  []OpenAPIParameter{threadIDParam},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Conversation history",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{
										Ref: "#/components/schemas/HistoryResponse",
									},
								},
							},
						},
						"404": {Description: "Thread not found", Content: errorContent},
					},
				},
			},
			"/threads/{id}": {
				Delete: &OpenAPIOperation{
					Summary:     "Reset thread",
					Description: "Clear a thread's conversation and query history",
					OperationID: "resetThread",
					Tags:        []string{"Threads"},
					Parameters:  []OpenAPIParameter{threadIDParam},
					Responses: map[string]OpenAPIResponse{
						"204": {Description: "Thread reset"},
						"404": {Description: "Thread not found", Content: errorContent},
					},
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"HealthResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status": {
							Type:        "string",
							Description: "Health status",
						},
					},
					Required: []string{"status"},
				},
				"ThreadResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"thread_id": {
							Type:        "string",
							Description: "Thread identifier",
						},
						"created_at": {
							Type:        "string",
							Format:      "date-time",
							Description: "Thread creation time",
						},
					},
					Required: []string{"thread_id", "created_at"},
				},
				"MessageRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"text": {
							Type:        "string",
							Description: "The user message",
						},
					},
					Required: []string{"text"},
				},
				"MessageResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"response": {
							Type:        "string",
							Description: "The assistant's reply",
						},
						"workflow_status": {
							Type:        "string",
							Description: "Terminal workflow status (complete or error)",
						},
						"sql": {
							Type:        "string",
							Description: "The SQL that was executed, if any",
						},
						"sql_source": {
							Type:        "string",
							Description: "Which stage produced the executed SQL",
						},
						"execution": {
							Ref: "#/components/schemas/ExecutionResult",
						},
						"insights": {
							Ref: "#/components/schemas/Insights",
						},
					},
					Required: []string{"response", "workflow_status"},
				},
				"ExecutionResult": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"columns": {
							Type:  "array",
							Items: &OpenAPISchema{Type: "string"},
						},
						"rows": {
							Type:        "array",
							Description: "Row values aligned with columns",
							Items:       &OpenAPISchema{Type: "array"},
						},
						"row_count": {
							Type: "integer",
						},
						"elapsed_seconds": {
							Type:   "number",
							Format: "double",
						},
						"success": {
							Type: "boolean",
						},
						"error": {
							Type: "string",
						},
					},
					Required: []string{"row_count", "success"},
				},
				"Insights": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"summary": {
							Type: "string",
						},
						"findings": {
							Type:  "array",
							Items: &OpenAPISchema{Type: "string"},
						},
						"recommendations": {
							Type:  "array",
							Items: &OpenAPISchema{Type: "string"},
						},
					},
					Required: []string{"summary"},
				},
				"HistoryResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"thread_id": {
							Type: "string",
						},
						"turns": {
							Type: "array",
							Items: &OpenAPISchema{
								Ref: "#/components/schemas/Turn",
							},
						},
						"sql_history": {
							Type: "array",
							Items: &OpenAPISchema{
								Ref: "#/components/schemas/SQLHistoryEntry",
							},
						},
					},
					Required: []string{"thread_id", "turns"},
				},
				"SQLHistoryEntry": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"user_question": {
							Type: "string",
						},
						"generated_sql": {
							Type: "string",
						},
						"source": {
							Type:        "string",
							Description: "Stage that produced the query",
						},
						"timestamp": {
							Type:   "string",
							Format: "date-time",
						},
					},
					Required: []string{"user_question", "generated_sql"},
				},
				"Turn": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"role": {
							Type:        "string",
							Description: "Message role (user or assistant)",
						},
						"text": {
							Type:        "string",
							Description: "Message text",
						},
					},
					Required: []string{"role", "text"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": {
							Ref: "#/components/schemas/ErrorDetail",
						},
					},
					Required: []string{"error"},
				},
				"ErrorDetail": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"code": {
							Type:        "string",
							Description: "Error code",
						},
						"message": {
							Type:        "string",
							Description: "Error message",
						},
					},
					Required: []string{"code", "message"},
				},
			},
		},
	}
}
