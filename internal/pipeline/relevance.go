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

	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

// RelevanceChecker classifies a retrieved KPI against the question.
type RelevanceChecker struct {
	completion llm.CompletionProvider
	logger     *slog.Logger
}

// NewRelevanceChecker creates a relevance checker.
func NewRelevanceChecker(completion llm.CompletionProvider, logger *slog.Logger) *RelevanceChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelevanceChecker{completion: completion, logger: logger}
}

const relevancePrompt = `You compare a user's data question against a predefined metric and decide
if the metric's SQL can answer it.

Choose exactly one decision:
- PERFECT_MATCH: the metric answers the question as-is, no SQL change needed
- NEEDS_MINOR_EDIT: the metric is the right analysis but needs a small change
  (added filter, different time window, extra grouping)
- NOT_RELEVANT: the metric does not answer this question

Examples:
Question: "show me closed claims by state"
Metric: "Closed Claims by State - count of closed claims grouped by state"
Answer: PERFECT_MATCH

Question: "closed claims by state this year"
Metric: "Closed Claims by State - count of closed claims grouped by state"
Answer: NEEDS_MINOR_EDIT (needs a current-year date filter)

Question: "average driver age"
Metric: "Closed Claims by State - count of closed claims grouped by state"
Answer: NOT_RELEVANT

Respond in exactly this format:
DECISION: PERFECT_MATCH | NEEDS_MINOR_EDIT | NOT_RELEVANT
REASONING: <one line>
CONFIDENCE: HIGH | MEDIUM | LOW`

// Classify returns the three-way relevance decision. With no KPI it
// short-circuits to not_relevant without an LLM call. Unparseable or
// erroring responses deterministically fall back to not_relevant / LOW.
func (c *RelevanceChecker) Classify(
	ctx context.Context,
	question string,
	kpi *database.KPIRecord,
) RelevanceDecision {
	if kpi == nil {
		return RelevanceDecision{
			Decision:   DecisionNotRelevant,
			Reasoning:  "no KPI retrieved for this question",
			Confidence: ConfidenceHigh,
		}
	}

	prompt := fmt.Sprintf(`Question: %q

Metric: %s
Description: %s
SQL:
%s`, question, kpi.MetricName, kpi.Description, kpi.SQLQuery)

	resp, err := c.completion.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: relevancePrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0,
	})
	if err != nil {
		c.logger.Warn("relevance check failed, defaulting to not_relevant", "error", err)
		return RelevanceDecision{
			Decision:   DecisionNotRelevant,
			Reasoning:  "relevance check unavailable",
			Confidence: ConfidenceLow,
		}
	}

	decision, ok := parseRelevance(resp.Content)
	if !ok {
		c.logger.Warn("relevance response unparseable, defaulting to not_relevant")
		return RelevanceDecision{
			Decision:   DecisionNotRelevant,
			Reasoning:  "relevance response unparseable",
			Confidence: ConfidenceLow,
		}
	}

	c.logger.Debug("relevance decided",
		"decision", decision.Decision,
		"confidence", decision.Confidence)
	return decision
}

// parseRelevance scans labeled lines (DECISION:, REASONING:, CONFIDENCE:)
// from free text.
func parseRelevance(text string) (RelevanceDecision, bool) {
	var d RelevanceDecision

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "DECISION:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("DECISION:"):]))
			switch {
			case strings.Contains(value, "PERFECT_MATCH"):
				d.Decision = DecisionPerfectMatch
			case strings.Contains(value, "NEEDS_MINOR_EDIT"):
				d.Decision = DecisionNeedsMinorEdit
			case strings.Contains(value, "NOT_RELEVANT"):
				d.Decision = DecisionNotRelevant
			}
		case strings.HasPrefix(strings.ToUpper(line), "REASONING:"):
			d.Reasoning = strings.TrimSpace(line[len("REASONING:"):])
		case strings.HasPrefix(strings.ToUpper(line), "CONFIDENCE:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("CONFIDENCE:"):]))
			switch {
			case strings.Contains(value, ConfidenceHigh):
				d.Confidence = ConfidenceHigh
			case strings.Contains(value, ConfidenceMedium):
				d.Confidence = ConfidenceMedium
			case strings.Contains(value, ConfidenceLow):
				d.Confidence = ConfidenceLow
			}
		}
	}

	if d.Decision == "" {
		return RelevanceDecision{}, false
	}
	if d.Confidence == "" {
		d.Confidence = ConfidenceLow
	}
	return d, true
}
