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
	"log/slog"
)

// QueryExecutor selects exactly one SQL candidate per turn and runs it.
type QueryExecutor struct {
	executor SQLExecutor
	logger   *slog.Logger
}

// NewQueryExecutor creates a query executor.
func NewQueryExecutor(executor SQLExecutor, logger *slog.Logger) *QueryExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExecutor{executor: executor, logger: logger}
}

// selectSQLCandidate walks the fixed priority order and returns the first
// available query:
//  1. a perfect-match KPI's canned SQL
//  2. validated generated, edited, or modified SQL
//  3. the retrieved KPI's SQL as a fallback
//  4. unvalidated generated SQL as a last resort
func selectSQLCandidate(state *PipelineState) (string, SQLSource, bool) {
	if state.Relevance != nil &&
		state.Relevance.Decision == DecisionPerfectMatch &&
		state.TopKPI != nil && state.TopKPI.SQLQuery != "" {
		return state.TopKPI.SQLQuery, SourceKPIDirect, true
	}

	if state.SQLValidated && state.GeneratedSQL != "" {
		return state.GeneratedSQL, state.SQLSource, true
	}

	if state.TopKPI != nil && state.TopKPI.SQLQuery != "" {
		return state.TopKPI.SQLQuery, SourceKPIDirect, true
	}

	if state.GeneratedSQL != "" {
		return state.GeneratedSQL, state.SQLSource, true
	}

	return "", "", false
}

// Run picks the winning candidate, executes it once, and records the
// outcome on the state. A warehouse failure becomes a failed
// ExecutionResult, not a turn-level error.
func (q *QueryExecutor) Run(ctx context.Context, state *PipelineState) {
	sql, source, ok := selectSQLCandidate(state)
	if !ok {
		state.Execution = &ExecutionResult{
			Success: false,
			Error:   "no SQL available to execute",
		}
		return
	}

	// Record what actually ran, which may differ from what a stage produced.
	state.GeneratedSQL = sql
	state.SQLSource = source

	q.logger.Info("executing query", "source", source)

	result, err := q.executor.Execute(ctx, sql)
	if err != nil {
		q.logger.Warn("query execution failed", "source", source, "error", err)
		state.Execution = &ExecutionResult{
			Success: false,
			Error:   err.Error(),
		}
		return
	}

	state.Execution = &ExecutionResult{
		Columns:        result.Columns,
		Rows:           result.Rows,
		RowCount:       result.RowCount,
		ElapsedSeconds: result.Elapsed.Seconds(),
		Success:        true,
	}
}
