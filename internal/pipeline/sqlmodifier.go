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
	"regexp"
	"strings"

	"github.com/fleetiq/claims-analyst/internal/llm"
)

// temporalKeywords signal a time-window follow-up.
var temporalKeywords = []string{
	"last week", "this week", "last month", "this month",
	"last quarter", "this quarter", "last year", "this year",
	"yesterday", "today",
}

// modifierFollowUpPhrases signal the utterance refers to a prior query.
var modifierFollowUpPhrases = []string{
	"what about", "how about", "same for", "and for", "show me for",
}

// dateFunctionMarkers indicate a query already filters on a date range.
var dateFunctionMarkers = []string{
	"date_trunc", "now()", "interval", "current_date",
}

// SQLModifier detects temporal re-scoping follow-ups and rewrites only
// the date predicate of the prior query.
type SQLModifier struct {
	completion llm.CompletionProvider
	logger     *slog.Logger
}

// NewSQLModifier creates a SQL modifier.
func NewSQLModifier(completion llm.CompletionProvider, logger *slog.Logger) *SQLModifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLModifier{completion: completion, logger: logger}
}

// Detect asks whether the new utterance requests the same analysis over a
// different time window. Accepted only at HIGH or MEDIUM confidence; on
// any detection failure a keyword heuristic decides instead.
func (m *SQLModifier) Detect(
	ctx context.Context,
	question string,
	last SQLHistoryEntry,
) ModificationRequest {
	prompt := fmt.Sprintf(`A user previously asked: %q
The query that answered it:
%s

The user now says: %q

Is the new message asking for the SAME analysis over a DIFFERENT time
window? Respond in exactly this format:
SHOULD_MODIFY: YES | NO
CONFIDENCE: HIGH | MEDIUM | LOW
TEMPORAL_REFERENCE: <the new time window, e.g. last_quarter, or NONE>
REASONING: <one line>`, last.UserQuestion, last.GeneratedSQL, question)

	resp, err := m.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		m.logger.Warn("modification detection failed, using heuristic", "error", err)
		return m.heuristicDetect(question, last)
	}

	req, ok := parseDetection(resp.Content)
	if !ok {
		m.logger.Warn("detection response unparseable, using heuristic")
		return m.heuristicDetect(question, last)
	}

	// Only confident detections short-circuit the main pipeline.
	if req.ShouldModify && req.Confidence != ConfidenceHigh && req.Confidence != ConfidenceMedium {
		req.ShouldModify = false
	}

	req.BaseSQL = last.GeneratedSQL
	req.BaseQuestion = last.UserQuestion
	return req
}

// parseDetection scans the labeled detection response.
func parseDetection(text string) (ModificationRequest, bool) {
	var req ModificationRequest
	found := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SHOULD_MODIFY:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("SHOULD_MODIFY:"):]))
			req.ShouldModify = strings.HasPrefix(value, "YES")
			found = true
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("CONFIDENCE:"):]))
			switch {
			case strings.Contains(value, ConfidenceHigh):
				req.Confidence = ConfidenceHigh
			case strings.Contains(value, ConfidenceMedium):
				req.Confidence = ConfidenceMedium
			default:
				req.Confidence = ConfidenceLow
			}
		case strings.HasPrefix(upper, "TEMPORAL_REFERENCE:"):
			value := strings.TrimSpace(line[len("TEMPORAL_REFERENCE:"):])
			if !strings.EqualFold(value, "NONE") {
				req.TemporalReference = value
			}
		case strings.HasPrefix(upper, "REASONING:"):
			req.Reasoning = strings.TrimSpace(line[len("REASONING:"):])
		}
	}

	return req, found
}

// heuristicDetect is the context-free fallback: a temporal keyword plus
// either a short utterance or an explicit follow-up phrase, with evidence
// the prior SQL used date functions.
func (m *SQLModifier) heuristicDetect(question string, last SQLHistoryEntry) ModificationRequest {
	lower := strings.ToLower(question)

	var reference string
	for _, kw := range temporalKeywords {
		if strings.Contains(lower, kw) {
			reference = strings.ReplaceAll(kw, " ", "_")
			break
		}
	}
	if reference == "" {
		return ModificationRequest{}
	}

	isFollowUp := len(strings.Fields(question)) <= 5
	if !isFollowUp {
		for _, phrase := range modifierFollowUpPhrases {
			if strings.Contains(lower, phrase) {
				isFollowUp = true
				break
			}
		}
	}
	if !isFollowUp {
		return ModificationRequest{}
	}

	sqlLower := strings.ToLower(last.GeneratedSQL)
	usesDates := false
	for _, marker := range dateFunctionMarkers {
		if strings.Contains(sqlLower, marker) {
			usesDates = true
			break
		}
	}
	if !usesDates {
		return ModificationRequest{}
	}

	return ModificationRequest{
		ShouldModify:      true,
		Confidence:        ConfidenceMedium,
		TemporalReference: reference,
		Reasoning:         "temporal keyword follow-up against a date-filtered query",
		BaseSQL:           last.GeneratedSQL,
		BaseQuestion:      last.UserQuestion,
	}
}

const modifierPrompt = `You rewrite one PostgreSQL query: change ONLY the date-range predicate to
the requested period, preserving every other clause character-for-character,
including SELECT list, GROUP BY, and ORDER BY.

Period examples:
- this week:    col >= date_trunc('week', now()) AND col < date_trunc('week', now()) + interval '1 week'
- last week:    col >= date_trunc('week', now()) - interval '1 week' AND col < date_trunc('week', now())
- this month:   col >= date_trunc('month', now()) AND col < date_trunc('month', now()) + interval '1 month'
- last month:   col >= date_trunc('month', now()) - interval '1 month' AND col < date_trunc('month', now())
- this quarter: col >= date_trunc('quarter', now()) AND col < date_trunc('quarter', now()) + interval '3 months'
- last quarter: col >= date_trunc('quarter', now()) - interval '3 months' AND col < date_trunc('quarter', now())
- this year:    col >= date_trunc('year', now()) AND col < date_trunc('year', now()) + interval '1 year'
- last year:    col >= date_trunc('year', now()) - interval '1 year' AND col < date_trunc('year', now())
- yesterday:    col >= current_date - interval '1 day' AND col < current_date
- today:        col >= current_date AND col < current_date + interval '1 day'

Return ONLY the rewritten SQL, no explanation, no code fences.`

// Modify rewrites the base query for the target period. The response is
// checked for a truncated ORDER BY and repaired from the original before
// a final completeness check; an unrecoverable result is an error, never
// an executed malformed query.
func (m *SQLModifier) Modify(ctx context.Context, req ModificationRequest) (string, error) {
	if req.BaseSQL == "" {
		return "", fmt.Errorf("no base SQL to modify")
	}

	prompt := fmt.Sprintf(`Base query:
%s

Target period: %s`, req.BaseSQL, req.TemporalReference)

	resp, err := m.completion.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: modifierPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0,
	})
	if err != nil {
		return "", fmt.Errorf("modification rewrite failed: %w", err)
	}

	modified := stripSQLFences(resp.Content)
	modified = recoverOrderBy(modified, req.BaseSQL)

	if !isCompleteQuery(modified, req.BaseSQL) {
		// One more recovery attempt before giving up.
		modified = recoverOrderBy(modified, req.BaseSQL)
		if !isCompleteQuery(modified, req.BaseSQL) {
			return "", fmt.Errorf("modified SQL failed completeness check")
		}
	}

	return modified, nil
}

var orderByRe = regexp.MustCompile(`(?is)\border\s+by\b`)

// completeOrderByRe matches a trailing ORDER BY clause that is properly
// terminated with a sort direction, optionally followed by LIMIT/OFFSET.
// Generated queries routinely end ORDER BY ... DESC LIMIT n.
var completeOrderByRe = regexp.MustCompile(`(?is)\border\s+by\s+.+\b(asc|desc)\s*(limit\s+\d+\s*(offset\s+\d+\s*)?)?;?\s*$`)

// trailingLimitRe matches a bare LIMIT/OFFSET tail with no ORDER BY in
// front of it.
var trailingLimitRe = regexp.MustCompile(`(?is)\blimit\s+\d+(\s+offset\s+\d+)?\s*;?\s*$`)

// extractOrderBy returns the original query's ORDER BY clause verbatim,
// without a trailing semicolon, or empty if there is none.
func extractOrderBy(sql string) string {
	loc := orderByRe.FindStringIndex(sql)
	if loc == nil {
		return ""
	}
	clause := strings.TrimSpace(sql[loc[0]:])
	return strings.TrimSuffix(clause, ";")
}

// hasCompleteOrderBy reports whether the query ends with a complete
// ORDER BY ... ASC|DESC clause.
func hasCompleteOrderBy(sql string) bool {
	return completeOrderByRe.MatchString(sql)
}

// recoverOrderBy re-appends the original ORDER BY clause verbatim when the
// rewritten query's trailing clause is missing, truncated, or malformed.
// Queries whose original had no ORDER BY are returned unchanged.
func recoverOrderBy(modified, original string) string {
	origClause := extractOrderBy(original)
	if origClause == "" || !hasCompleteOrderBy(original) {
		return modified
	}
	if hasCompleteOrderBy(modified) {
		return modified
	}

	// Drop any truncated trailing ORDER BY fragment first.
	if loc := orderByRe.FindStringIndex(modified); loc != nil {
		tail := modified[loc[0]:]
		if !hasCompleteOrderBy(tail) {
			modified = strings.TrimSpace(modified[:loc[0]])
		}
	} else if loc := trailingLimitRe.FindStringIndex(modified); loc != nil {
		// The rewrite kept a LIMIT but lost the ORDER BY in front of it.
		// The original clause carries its own LIMIT when it had one.
		modified = strings.TrimSpace(modified[:loc[0]])
	}

	modified = strings.TrimSuffix(strings.TrimSpace(modified), ";")
	return modified + "\n" + origClause
}

// isCompleteQuery independently verifies the rewritten query still has
// SELECT, FROM, and an ORDER BY whenever the original carried one; when
// the original's clause was properly terminated, the rewrite's must be too.
func isCompleteQuery(modified, original string) bool {
	upper := strings.ToUpper(modified)
	if !strings.Contains(upper, "SELECT") || !strings.Contains(upper, "FROM") {
		return false
	}
	if extractOrderBy(original) == "" {
		return true
	}
	if extractOrderBy(modified) == "" {
		return false
	}
	if hasCompleteOrderBy(original) {
		return hasCompleteOrderBy(modified)
	}
	return true
}
