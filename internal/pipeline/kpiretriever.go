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
	"strings"

	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

// followUpPhrases mark questions that only make sense relative to an
// earlier data question; such questions are embedded with prior context.
var followUpPhrases = []string{
	"tell me more",
	"more about",
	"what about",
	"how about",
	"break it down",
	"and for",
	"same for",
	"drill down",
}

// dataQuestionWords identify conversation messages that carried a data
// request, used when searching backward for context.
var dataQuestionWords = []string{
	"claim", "count", "how many", "total", "average", "by state",
	"by type", "rate", "trend", "top", "show me",
}

// KPIRetriever finds the single best predefined metric for a question.
type KPIRetriever struct {
	index    VectorIndex
	embedder llm.EmbeddingProvider
	topK     int
	logger   *slog.Logger
}

// NewKPIRetriever creates a KPI retriever.
func NewKPIRetriever(index VectorIndex, embedder llm.EmbeddingProvider, topK int, logger *slog.Logger) *KPIRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}
	return &KPIRetriever{
		index:    index,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve embeds the question, searches the KPI index, and returns only
// the top-scoring hit. Lower-ranked hits are discarded, not retried; any
// failure or empty result yields nil.
func (r *KPIRetriever) Retrieve(
	ctx context.Context,
	question string,
	history []ConversationTurn,
) *database.KPIRecord {
	query := r.enhanceWithContext(question, history)

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("kpi retrieval: embedding failed", "error", err)
		return nil
	}

	hits, err := r.index.SearchKPIs(ctx, embedding, r.topK)
	if err != nil {
		r.logger.Warn("kpi retrieval: search failed", "error", err)
		return nil
	}
	if len(hits) == 0 {
		r.logger.Debug("kpi retrieval: no hits")
		return nil
	}

	top := hits[0]
	r.logger.Debug("kpi retrieved",
		"metric", top.MetricName,
		"score", top.Score,
		"candidates", len(hits))
	return &top
}

// enhanceWithContext prefixes follow-up questions with the most recent
// data-flavored user message so the embedding carries the full intent.
func (r *KPIRetriever) enhanceWithContext(question string, history []ConversationTurn) string {
	lower := strings.ToLower(question)

	isFollowUp := false
	for _, phrase := range followUpPhrases {
		if strings.Contains(lower, phrase) {
			isFollowUp = true
			break
		}
	}
	if !isFollowUp {
		return question
	}

	// Search backward for the last user message that looks like a data
	// question, excluding the current one.
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		if turn.Role != "user" || turn.Text == question {
			continue
		}
		turnLower := strings.ToLower(turn.Text)
		for _, word := range dataQuestionWords {
			if strings.Contains(turnLower, word) {
				return turn.Text + " " + question
			}
		}
	}

	return question
}
