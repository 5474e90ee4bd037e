//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fleetiq/claims-analyst/internal/llm"
)

// analysisKeywords decide DATA_ANALYSIS in the keyword fallback when
// intent classification is unavailable.
var analysisKeywords = []string{
	"how many", "count", "total", "average", "sum", "show me",
	"claims", "by state", "by type", "trend", "top", "rate",
	"compare", "breakdown", "list",
}

// Orchestrator drives one conversation turn through intent routing,
// retrieval, SQL production, execution, and response synthesis.
type Orchestrator struct {
	completion llm.CompletionProvider
	kpi        *KPIRetriever
	metadata   *MetadataRetriever
	relevance  *RelevanceChecker
	editor     *KPIEditor
	generator  *SQLGenerator
	modifier   *SQLModifier
	executor   *QueryExecutor
	logger     *slog.Logger
}

// OrchestratorConfig wires the stages together.
type OrchestratorConfig struct {
	Completion llm.CompletionProvider
	KPI        *KPIRetriever
	Metadata   *MetadataRetriever
	Relevance  *RelevanceChecker
	Editor     *KPIEditor
	Generator  *SQLGenerator
	Modifier   *SQLModifier
	Executor   *QueryExecutor
	Logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		completion: cfg.Completion,
		kpi:        cfg.KPI,
		metadata:   cfg.Metadata,
		relevance:  cfg.Relevance,
		editor:     cfg.Editor,
		generator:  cfg.Generator,
		modifier:   cfg.Modifier,
		executor:   cfg.Executor,
		logger:     logger,
	}
}

// Handle processes one user message in the given session. The session is
// locked for the whole turn; concurrent messages to the same thread are
// serialized. Handle always returns a terminal state, never panics the
// caller, and never leaves the conversation without an assistant turn.
func (o *Orchestrator) Handle(ctx context.Context, session *Session, userText string) *PipelineState {
	session.lock()
	defer session.unlock()

	userText = strings.TrimSpace(userText)
	recovered := false
	if userText == "" {
		// An empty message retries the last user question if there is one.
		for i := len(session.turns) - 1; i >= 0; i-- {
			if session.turns[i].Role == "user" {
				userText = session.turns[i].Text
				recovered = true
				break
			}
		}
	}
	if userText == "" {
		state := &PipelineState{
			WorkflowStatus: WorkflowError,
			FinalResponse:  "Please ask a question about your claims data.",
		}
		return state
	}

	// A recovered question is already in the log; re-appending it would
	// duplicate the turn in both histories.
	if !recovered {
		session.appendTurn(ConversationTurn{Role: "user", Text: userText})
	}

	state := &PipelineState{
		UserQuery:      userText,
		Conversation:   append([]ConversationTurn(nil), session.essential...),
		SQLHistory:     append([]SQLHistoryEntry(nil), session.sqlHistory...),
		WorkflowStatus: WorkflowActive,
	}

	o.runTurn(ctx, session, state)

	if state.FinalResponse == "" {
		state.FinalResponse = "I encountered an error processing your question. Please try again."
		state.WorkflowStatus = WorkflowError
	}

	session.appendTurn(ConversationTurn{Role: "assistant", Text: state.FinalResponse})
	return state
}

// runTurn routes the turn. Any stage panic is converted to an error reply
// so the thread stays usable.
func (o *Orchestrator) runTurn(ctx context.Context, session *Session, state *PipelineState) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panicked", "panic", r)
			state.WorkflowStatus = WorkflowError
			state.FinalResponse = fmt.Sprintf("I encountered an error: %v", r)
		}
	}()

	if o.classifyIntent(ctx, state) == intentDirectReply {
		o.directReply(ctx, state)
		return
	}

	// Temporal re-scoping of the previous query short-circuits retrieval.
	if last, ok := session.latestSQL(); ok {
		req := o.modifier.Detect(ctx, state.UserQuery, last)
		if req.ShouldModify {
			state.Modification = &req
			o.runModification(ctx, session, state, req)
			return
		}
	}

	o.runAnalysis(ctx, session, state)
}

type intent int

const (
	intentDirectReply intent = iota
	intentDataAnalysis
)

// classifyIntent routes between a conversational reply and the data
// pipeline. On LLM failure a keyword heuristic decides.
func (o *Orchestrator) classifyIntent(ctx context.Context, state *PipelineState) intent {
	prompt := fmt.Sprintf(`Classify the user's latest message.

DIRECT_REPLY: greetings, thanks, questions about the assistant itself,
questions answerable from the conversation so far without running a query.
DATA_ANALYSIS: anything that needs data retrieved from the claims warehouse.

Conversation:
%s

Latest message: %q

Answer with exactly one word: DIRECT_REPLY or DATA_ANALYSIS`,
		renderHistory(state.Conversation), state.UserQuery)

	resp, err := o.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		o.logger.Warn("intent classification failed, using keyword heuristic", "error", err)
		return heuristicIntent(state.UserQuery)
	}

	answer := strings.ToUpper(resp.Content)
	switch {
	case strings.Contains(answer, "DATA_ANALYSIS"):
		return intentDataAnalysis
	case strings.Contains(answer, "DIRECT_REPLY"):
		return intentDirectReply
	default:
		return heuristicIntent(state.UserQuery)
	}
}

// heuristicIntent is the keyword fallback for intent routing.
func heuristicIntent(question string) intent {
	lower := strings.ToLower(question)
	for _, kw := range analysisKeywords {
		if strings.Contains(lower, kw) {
			return intentDataAnalysis
		}
	}
	return intentDirectReply
}

// renderHistory formats turns for prompting.
func renderHistory(turns []ConversationTurn) string {
	if len(turns) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
	}
	return sb.String()
}

// directReply answers conversationally from history, without querying.
func (o *Orchestrator) directReply(ctx context.Context, state *PipelineState) {
	var sqlContext string
	if n := len(state.SQLHistory); n > 0 {
		last := state.SQLHistory[n-1]
		sqlContext = fmt.Sprintf("\nThe most recent query answered %q:\n%s\n",
			last.UserQuestion, last.GeneratedSQL)
	}

	prompt := fmt.Sprintf(`You are a claims data analysis assistant. Reply to the user's latest
message conversationally and briefly. Do not invent data values.

Conversation:
%s%s
Latest message: %q`, renderHistory(state.Conversation), sqlContext, state.UserQuery)

	resp, err := o.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		o.logger.Warn("direct reply synthesis failed", "error", err)
		state.FinalResponse = "I'm a claims data analysis assistant. Ask me a question about your claims data."
		state.WorkflowStatus = WorkflowComplete
		return
	}

	state.FinalResponse = strings.TrimSpace(resp.Content)
	state.WorkflowStatus = WorkflowComplete
}

// runModification rewrites the previous query's time window and executes
// the result. An unrecoverable rewrite is reported as a failed turn rather
// than executing a malformed query.
func (o *Orchestrator) runModification(
	ctx context.Context,
	session *Session,
	state *PipelineState,
	req ModificationRequest,
) {
	modified, err := o.modifier.Modify(ctx, req)
	if err != nil {
		o.logger.Warn("temporal modification failed", "error", err)
		state.ModificationError = err.Error()
		state.WorkflowStatus = WorkflowError
		state.FinalResponse = fmt.Sprintf(
			"I couldn't adjust the previous query to %q. Please restate the full question.",
			req.TemporalReference)
		return
	}

	state.GeneratedSQL = modified
	state.SQLValidated = true
	state.SQLSource = SourceSQLModification

	o.executor.Run(ctx, state)
	o.finishTurn(session, state)
}

// runAnalysis is the full retrieval path: parallel KPI and metadata
// retrieval, relevance, then the SQL stage the decision selects.
func (o *Orchestrator) runAnalysis(ctx context.Context, session *Session, state *PipelineState) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		state.TopKPI = o.kpi.Retrieve(ctx, state.UserQuery, state.Conversation)
	}()
	go func() {
		defer wg.Done()
		state.MetadataColumns = o.metadata.Retrieve(ctx, state.UserQuery)
	}()
	wg.Wait()

	decision := o.relevance.Classify(ctx, state.UserQuery, state.TopKPI)
	state.Relevance = &decision

	switch decision.Decision {
	case DecisionPerfectMatch:
		// The canned SQL runs as-is; the executor selects it first.

	case DecisionNeedsMinorEdit:
		result, err := o.editor.Edit(ctx, state.UserQuery, state.TopKPI,
			state.MetadataColumns, state.Conversation)
		if err != nil {
			o.logger.Warn("kpi edit failed, falling back to generation", "error", err)
			state.EditError = err.Error()
			o.generate(ctx, state)
			break
		}
		state.GeneratedSQL = result.EditedSQL
		state.SQLValidated = true
		state.SQLSource = SourceKPIEditor

	case DecisionNotRelevant:
		o.generate(ctx, state)
	}

	o.executor.Run(ctx, state)
	o.finishTurn(session, state)
}

// generate authors fresh SQL from the metadata columns.
func (o *Orchestrator) generate(ctx context.Context, state *PipelineState) {
	sql, err := o.generator.Generate(ctx, state.UserQuery, state.MetadataColumns)
	if err != nil {
		o.logger.Warn("sql generation failed", "error", err)
		return
	}
	state.GeneratedSQL = sql
	state.SQLValidated = true
	state.SQLSource = SourceSQLGeneration
}

// finishTurn records history, generates insights, and composes the reply.
// An execution failure is still a completed turn; the error lives in the
// execution envelope, and the query stays in history so a follow-up can
// still re-scope it.
func (o *Orchestrator) finishTurn(session *Session, state *PipelineState) {
	if state.GeneratedSQL != "" {
		session.recordSQL(SQLHistoryEntry{
			UserQuestion: state.UserQuery,
			GeneratedSQL: state.GeneratedSQL,
			Source:       state.SQLSource,
			Timestamp:    time.Now(),
		})
		state.SQLHistory = append([]SQLHistoryEntry(nil), session.sqlHistory...)
	}

	state.Insights = GenerateInsights(state.Execution)
	state.FinalResponse = composeResponse(state)
	state.WorkflowStatus = WorkflowComplete
}

// composeResponse renders the deterministic final answer: result table
// header, insights, and recommendations.
func composeResponse(state *PipelineState) string {
	var sb strings.Builder

	if state.Execution == nil || !state.Execution.Success {
		sb.WriteString("I couldn't run a query for that question.")
		if state.Execution != nil && state.Execution.Error != "" {
			fmt.Fprintf(&sb, " (%s)", state.Execution.Error)
		}
		if state.Insights != nil && len(state.Insights.Recommendations) > 0 {
			sb.WriteString("\n")
			sb.WriteString(state.Insights.Recommendations[0])
		}
		return sb.String()
	}

	if state.Insights != nil {
		sb.WriteString(state.Insights.Summary)
		sb.WriteString("\n")
	}

	sb.WriteString(renderResultTable(state.Execution))

	if state.Insights != nil {
		for _, f := range state.Insights.Findings {
			sb.WriteString("\n- ")
			sb.WriteString(f)
		}
		if len(state.Insights.Recommendations) > 0 {
			sb.WriteString("\n\nNext steps:")
			for _, r := range state.Insights.Recommendations {
				sb.WriteString("\n- ")
				sb.WriteString(r)
			}
		}
	}

	return sb.String()
}

// maxRenderedRows caps the rows rendered into the chat reply.
const maxRenderedRows = 20

// renderResultTable renders a markdown table of the first rows.
func renderResultTable(result *ExecutionResult) string {
	if result.RowCount == 0 || len(result.Columns) == 0 {
		return "No rows returned.\n"
	}

	var sb strings.Builder
	sb.WriteString("| ")
	sb.WriteString(strings.Join(result.Columns, " | "))
	sb.WriteString(" |\n|")
	for range result.Columns {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")

	limit := len(result.Rows)
	if limit > maxRenderedRows {
		limit = maxRenderedRows
	}
	for _, row := range result.Rows[:limit] {
		sb.WriteString("|")
		for _, cell := range row {
			if cell == nil {
				sb.WriteString("  |")
				continue
			}
			fmt.Fprintf(&sb, " %v |", cell)
		}
		sb.WriteString("\n")
	}
	if result.RowCount > limit {
		fmt.Fprintf(&sb, "\nTotal rows: %d (showing first %d)\n", result.RowCount, limit)
	}

	return sb.String()
}
