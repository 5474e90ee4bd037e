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
	"errors"
	"testing"

	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

func TestClassifyNilKPI(t *testing.T) {
	called := false
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			called = true
			return &llm.CompletionResponse{Content: "DECISION: PERFECT_MATCH"}, nil
		},
	}
	c := NewRelevanceChecker(mock, nil)

	got := c.Classify(context.Background(), "how many claims", nil)

	if called {
		t.Error("no LLM call expected without a KPI")
	}
	if got.Decision != DecisionNotRelevant {
		t.Errorf("decision = %q, want not_relevant", got.Decision)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", got.Confidence)
	}
}

func TestClassifyFallsBackOnError(t *testing.T) {
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider unavailable")
		},
	}
	c := NewRelevanceChecker(mock, nil)

	got := c.Classify(context.Background(), "claims by state",
		&database.KPIRecord{MetricName: "Claims by State", SQLQuery: "SELECT 1"})

	if got.Decision != DecisionNotRelevant {
		t.Errorf("decision = %q, want not_relevant on provider error", got.Decision)
	}
	if got.Confidence != ConfidenceLow {
		t.Errorf("confidence = %q, want LOW on provider error", got.Confidence)
	}
}

func TestClassifyFallsBackOnUnparseable(t *testing.T) {
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "The metric looks fine to me."}, nil
		},
	}
	c := NewRelevanceChecker(mock, nil)

	got := c.Classify(context.Background(), "claims by state",
		&database.KPIRecord{MetricName: "Claims by State", SQLQuery: "SELECT 1"})

	if got.Decision != DecisionNotRelevant || got.Confidence != ConfidenceLow {
		t.Errorf("got %+v, want not_relevant/LOW for unparseable response", got)
	}
}

func TestParseRelevance(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantDecision   DecisionType
		wantConfidence string
		wantOK         bool
	}{
		{
			name: "full labeled response",
			text: `DECISION: NEEDS_MINOR_EDIT
REASONING: needs a date filter
CONFIDENCE: MEDIUM`,
			wantDecision:   DecisionNeedsMinorEdit,
			wantConfidence: ConfidenceMedium,
			wantOK:         true,
		},
		{
			name:           "lowercase labels still parse",
			text:           "decision: PERFECT_MATCH\nconfidence: high",
			wantDecision:   DecisionPerfectMatch,
			wantConfidence: ConfidenceHigh,
			wantOK:         true,
		},
		{
			name:           "missing confidence defaults to LOW",
			text:           "DECISION: NOT_RELEVANT\nREASONING: different analysis",
			wantDecision:   DecisionNotRelevant,
			wantConfidence: ConfidenceLow,
			wantOK:         true,
		},
		{
			name:   "no decision line",
			text:   "REASONING: something\nCONFIDENCE: HIGH",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRelevance(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Decision != tt.wantDecision {
				t.Errorf("decision = %q, want %q", got.Decision, tt.wantDecision)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %q, want %q", got.Confidence, tt.wantConfidence)
			}
		})
	}
}
