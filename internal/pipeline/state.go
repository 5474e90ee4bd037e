//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline implements the conversational analysis pipeline: intent
// routing, KPI and column-catalog retrieval, relevance checking, SQL
// synthesis and editing, temporal re-scoping, execution, and insight
// generation.
package pipeline

import (
	"time"

	"github.com/fleetiq/claims-analyst/internal/database"
)

// WorkflowStatus tracks the lifecycle of a turn.
type WorkflowStatus string

// Workflow states.
const (
	WorkflowActive   WorkflowStatus = "active"
	WorkflowComplete WorkflowStatus = "complete"
	WorkflowError    WorkflowStatus = "error"
)

// DecisionType is the three-way relevance classification that selects
// which SQL-production stage runs.
type DecisionType string

// Relevance decisions.
const (
	DecisionPerfectMatch   DecisionType = "perfect_match"
	DecisionNeedsMinorEdit DecisionType = "needs_minor_edit"
	DecisionNotRelevant    DecisionType = "not_relevant"
)

// Confidence tiers reported by LLM decisions.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// ConversationTurn is a single message in the conversation.
type ConversationTurn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// RelevanceDecision is the outcome of classifying the retrieved KPI
// against the user's question.
type RelevanceDecision struct {
	Decision   DecisionType `json:"decision"`
	Reasoning  string       `json:"reasoning"`
	Confidence string       `json:"confidence"`
}

// SQLSource identifies which stage produced an executed query.
type SQLSource string

// SQL sources, in the order the stages appear in the pipeline.
const (
	SourceKPIDirect       SQLSource = "kpi_direct"
	SourceSQLGeneration   SQLSource = "sql_generation"
	SourceKPIEditor       SQLSource = "kpi_editor"
	SourceSQLModification SQLSource = "sql_modification"
)

// SQLHistoryEntry records one executed or generated query for a session.
type SQLHistoryEntry struct {
	UserQuestion string    `json:"user_question"`
	GeneratedSQL string    `json:"generated_sql"`
	Source       SQLSource `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// ModificationRequest carries the temporal re-scoping detection outcome
// from the orchestrator to the SQL Modifier.
type ModificationRequest struct {
	ShouldModify      bool   `json:"should_modify"`
	Confidence        string `json:"confidence"`
	TemporalReference string `json:"temporal_reference"`
	Reasoning         string `json:"reasoning"`
	BaseSQL           string `json:"base_sql"`
	BaseQuestion      string `json:"base_question"`
}

// ExecutionResult is the uniform result envelope a turn exposes for display.
type ExecutionResult struct {
	Columns        []string        `json:"columns,omitempty"`
	Rows           [][]interface{} `json:"rows,omitempty"`
	RowCount       int             `json:"row_count"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
}

// Insights is the deterministic summary produced after execution.
type Insights struct {
	Summary         string   `json:"summary"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
}

// PipelineState is the mutable record threaded through every stage of one
// turn. It is created fresh per orchestrator invocation and discarded at
// turn end except for the fields persisted into session history.
type PipelineState struct {
	UserQuery    string             `json:"user_query"`
	Conversation []ConversationTurn `json:"conversation"`

	TopKPI          *database.KPIRecord      `json:"top_kpi,omitempty"`
	MetadataColumns []database.CatalogColumn `json:"metadata_columns,omitempty"`
	Relevance       *RelevanceDecision       `json:"relevance_decision,omitempty"`

	GeneratedSQL string    `json:"generated_sql,omitempty"`
	SQLValidated bool      `json:"sql_validated"`
	SQLSource    SQLSource `json:"sql_source,omitempty"`

	Modification      *ModificationRequest `json:"modification,omitempty"`
	ModificationError string               `json:"modification_error,omitempty"`
	EditError         string               `json:"edit_error,omitempty"`

	Execution *ExecutionResult `json:"execution_result,omitempty"`
	Insights  *Insights        `json:"insights,omitempty"`

	WorkflowStatus WorkflowStatus `json:"workflow_status"`
	FinalResponse  string         `json:"final_response,omitempty"`

	// Mirror of the session's SQL history for cross-stage visibility.
	SQLHistory []SQLHistoryEntry `json:"sql_history,omitempty"`
}
