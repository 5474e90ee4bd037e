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
	"strings"
	"testing"

	"github.com/fleetiq/claims-analyst/internal/llm"
)

func TestExtractOrderBy(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "simple clause",
			sql:  `SELECT a FROM t ORDER BY a DESC`,
			want: `ORDER BY a DESC`,
		},
		{
			name: "trailing semicolon trimmed",
			sql:  `SELECT a FROM t ORDER BY a DESC;`,
			want: `ORDER BY a DESC`,
		},
		{
			name: "no clause",
			sql:  `SELECT a FROM t`,
			want: "",
		},
		{
			name: "case insensitive",
			sql:  `SELECT a FROM t order by a asc`,
			want: `order by a asc`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractOrderBy(tt.sql); got != tt.want {
				t.Errorf("extractOrderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCompleteOrderBy(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"complete desc", `SELECT a FROM t ORDER BY a DESC`, true},
		{"complete asc with semicolon", `SELECT a FROM t ORDER BY a ASC;`, true},
		{"complete desc with limit", `SELECT a FROM t ORDER BY a DESC LIMIT 10`, true},
		{"complete with limit and semicolon", `SELECT a FROM t ORDER BY a DESC LIMIT 10;`, true},
		{"complete with limit and offset", `SELECT a FROM t ORDER BY a ASC LIMIT 5 OFFSET 20`, true},
		{"truncated mid-clause", `SELECT a FROM t ORDER BY`, false},
		{"truncated column only", `SELECT a FROM t ORDER BY cla`, false},
		{"truncated inside limit", `SELECT a FROM t ORDER BY a DESC LIMIT`, false},
		{"no order by", `SELECT a FROM t`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasCompleteOrderBy(tt.sql); got != tt.want {
				t.Errorf("hasCompleteOrderBy(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestRecoverOrderBy(t *testing.T) {
	original := `SELECT "State", count(*) FROM "claims" GROUP BY "State" ORDER BY count(*) DESC`

	t.Run("truncated clause replaced from original", func(t *testing.T) {
		truncated := `SELECT "State", count(*) FROM "claims" WHERE "Occurrence Date" >= now() GROUP BY "State" ORDER BY cou`
		got := recoverOrderBy(truncated, original)
		if !strings.HasSuffix(got, `ORDER BY count(*) DESC`) {
			t.Errorf("expected original ORDER BY re-appended, got %q", got)
		}
		if strings.Contains(got, "ORDER BY cou\n") {
			t.Errorf("truncated fragment must be dropped, got %q", got)
		}
	})

	t.Run("missing clause appended", func(t *testing.T) {
		missing := `SELECT "State", count(*) FROM "claims" GROUP BY "State"`
		got := recoverOrderBy(missing, original)
		if !strings.HasSuffix(got, `ORDER BY count(*) DESC`) {
			t.Errorf("expected original ORDER BY appended, got %q", got)
		}
	})

	t.Run("complete clause untouched", func(t *testing.T) {
		complete := `SELECT "State", count(*) FROM "claims" GROUP BY "State" ORDER BY count(*) ASC`
		got := recoverOrderBy(complete, original)
		if got != complete {
			t.Errorf("complete query must be unchanged, got %q", got)
		}
	})

	t.Run("original without order by leaves modified alone", func(t *testing.T) {
		noOrder := `SELECT count(*) FROM "claims"`
		modified := `SELECT count(*) FROM "claims" WHERE x`
		if got := recoverOrderBy(modified, noOrder); got != modified {
			t.Errorf("expected no recovery, got %q", got)
		}
	})

	t.Run("clause dropped from limit-tailed original", func(t *testing.T) {
		withLimit := `SELECT "State", count(*) FROM "claims" GROUP BY "State" ORDER BY count(*) DESC LIMIT 10`
		dropped := `SELECT "State", count(*) FROM "claims" WHERE "Occurrence Date" >= now() GROUP BY "State"`
		got := recoverOrderBy(dropped, withLimit)
		if !strings.HasSuffix(got, `ORDER BY count(*) DESC LIMIT 10`) {
			t.Errorf("expected original ORDER BY with LIMIT re-appended, got %q", got)
		}
	})

	t.Run("kept limit but dropped order by", func(t *testing.T) {
		withLimit := `SELECT "State", count(*) FROM "claims" GROUP BY "State" ORDER BY count(*) DESC LIMIT 10`
		keptLimit := `SELECT "State", count(*) FROM "claims" WHERE "Occurrence Date" >= now() GROUP BY "State" LIMIT 10`
		got := recoverOrderBy(keptLimit, withLimit)
		if !strings.HasSuffix(got, `ORDER BY count(*) DESC LIMIT 10`) {
			t.Errorf("expected original clause re-appended, got %q", got)
		}
		if strings.Count(strings.ToUpper(got), "LIMIT") != 1 {
			t.Errorf("expected exactly one LIMIT after recovery, got %q", got)
		}
	})
}

func TestIsCompleteQueryRequiresOrderBy(t *testing.T) {
	tests := []struct {
		name     string
		modified string
		original string
		want     bool
	}{
		{
			name:     "original had none",
			modified: `SELECT count(*) FROM "claims"`,
			original: `SELECT count(*) FROM "claims" WHERE x`,
			want:     true,
		},
		{
			name:     "order by lost entirely",
			modified: `SELECT a FROM t WHERE x`,
			original: `SELECT a FROM t ORDER BY a DESC LIMIT 10`,
			want:     false,
		},
		{
			name:     "order by preserved with limit",
			modified: `SELECT a FROM t WHERE y ORDER BY a DESC LIMIT 10`,
			original: `SELECT a FROM t ORDER BY a DESC LIMIT 10`,
			want:     true,
		},
		{
			name:     "directionless original keeps any order by",
			modified: `SELECT a FROM t WHERE y ORDER BY 1`,
			original: `SELECT a FROM t ORDER BY 1`,
			want:     true,
		},
		{
			name:     "directionless original lost its order by",
			modified: `SELECT a FROM t WHERE y`,
			original: `SELECT a FROM t ORDER BY 1`,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCompleteQuery(tt.modified, tt.original); got != tt.want {
				t.Errorf("isCompleteQuery() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDetection(t *testing.T) {
	text := `SHOULD_MODIFY: YES
CONFIDENCE: HIGH
TEMPORAL_REFERENCE: last_quarter
REASONING: same analysis, different window`

	req, ok := parseDetection(text)
	if !ok {
		t.Fatal("expected parseable detection")
	}
	if !req.ShouldModify {
		t.Error("expected ShouldModify true")
	}
	if req.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", req.Confidence)
	}
	if req.TemporalReference != "last_quarter" {
		t.Errorf("temporal reference = %q", req.TemporalReference)
	}
}

func TestParseDetectionUnparseable(t *testing.T) {
	if _, ok := parseDetection("I think probably yes?"); ok {
		t.Error("expected unparseable text to fail")
	}
}

func TestDetectRejectsLowConfidence(t *testing.T) {
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "SHOULD_MODIFY: YES\nCONFIDENCE: LOW\nTEMPORAL_REFERENCE: last_week\nREASONING: unsure"}, nil
		},
	}
	m := NewSQLModifier(mock, nil)

	req := m.Detect(context.Background(), "what about last week", SQLHistoryEntry{
		UserQuestion: "claims by state",
		GeneratedSQL: "SELECT 1",
	})

	if req.ShouldModify {
		t.Error("LOW confidence detection must not trigger modification")
	}
}

func TestHeuristicDetect(t *testing.T) {
	m := NewSQLModifier(&MockCompletionProvider{}, nil)
	lastWithDates := SQLHistoryEntry{
		UserQuestion: "claims opened this month",
		GeneratedSQL: `SELECT count(*) FROM "claims" WHERE "Opened Date" >= date_trunc('month', now())`,
	}

	tests := []struct {
		name     string
		question string
		last     SQLHistoryEntry
		want     bool
	}{
		{"short temporal follow-up", "what about last month", lastWithDates, true},
		{"temporal keyword alone in long question", "please give me a completely different report about drivers from last month instead", lastWithDates, false},
		{"no temporal keyword", "break it down by state", lastWithDates, false},
		{
			name:     "prior SQL without date functions",
			question: "last week?",
			last:     SQLHistoryEntry{GeneratedSQL: `SELECT count(*) FROM "claims"`},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := m.heuristicDetect(tt.question, tt.last)
			if req.ShouldModify != tt.want {
				t.Errorf("heuristicDetect(%q) = %v, want %v", tt.question, req.ShouldModify, tt.want)
			}
		})
	}
}

func TestModifyRecoversTruncatedOrderBy(t *testing.T) {
	base := `SELECT "State", count(*) FROM "claims" WHERE "Occurrence Date" >= date_trunc('month', now()) GROUP BY "State" ORDER BY count(*) DESC`

	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			// Simulates a response cut off inside the ORDER BY clause.
			return &llm.CompletionResponse{
				Content: `SELECT "State", count(*) FROM "claims" WHERE "Occurrence Date" >= date_trunc('quarter', now()) - interval '3 months' AND "Occurrence Date" < date_trunc('quarter', now()) GROUP BY "State" ORDER BY cou`,
			}, nil
		},
	}
	m := NewSQLModifier(mock, nil)

	got, err := m.Modify(context.Background(), ModificationRequest{
		ShouldModify:      true,
		TemporalReference: "last_quarter",
		BaseSQL:           base,
	})
	if err != nil {
		t.Fatalf("Modify() error: %v", err)
	}
	if !strings.HasSuffix(got, `ORDER BY count(*) DESC`) {
		t.Errorf("expected recovered ORDER BY, got %q", got)
	}
	if !strings.Contains(got, "date_trunc('quarter'") {
		t.Errorf("expected rewritten date predicate, got %q", got)
	}
}

func TestModifyRestoresDroppedOrderByWithLimit(t *testing.T) {
	base := `SELECT "State", count(*) AS claim_count FROM "claims" WHERE "Occurrence Date" >= date_trunc('month', now()) GROUP BY "State" ORDER BY claim_count DESC LIMIT 10`

	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			// Simulates a rewrite that changed the date predicate but lost
			// the trailing ORDER BY and LIMIT.
			return &llm.CompletionResponse{
				Content: `SELECT "State", count(*) AS claim_count FROM "claims" WHERE "Occurrence Date" >= date_trunc('quarter', now()) - interval '3 months' AND "Occurrence Date" < date_trunc('quarter', now()) GROUP BY "State"`,
			}, nil
		},
	}
	m := NewSQLModifier(mock, nil)

	got, err := m.Modify(context.Background(), ModificationRequest{
		ShouldModify:      true,
		TemporalReference: "last_quarter",
		BaseSQL:           base,
	})
	if err != nil {
		t.Fatalf("Modify() error: %v", err)
	}
	if !strings.HasSuffix(got, `ORDER BY claim_count DESC LIMIT 10`) {
		t.Errorf("expected original ORDER BY and LIMIT restored, got %q", got)
	}
	if !strings.Contains(got, "date_trunc('quarter'") {
		t.Errorf("expected rewritten date predicate, got %q", got)
	}
}

func TestModifyFailsOnUnrecoverableResponse(t *testing.T) {
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "I cannot rewrite that query."}, nil
		},
	}
	m := NewSQLModifier(mock, nil)

	_, err := m.Modify(context.Background(), ModificationRequest{
		ShouldModify:      true,
		TemporalReference: "last_week",
		BaseSQL:           `SELECT a FROM t ORDER BY a DESC`,
	})
	if err == nil {
		t.Fatal("expected error for a response with no usable SQL")
	}
}

func TestModifyPropagatesLLMError(t *testing.T) {
	mock := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("rate limited")
		},
	}
	m := NewSQLModifier(mock, nil)

	_, err := m.Modify(context.Background(), ModificationRequest{
		TemporalReference: "last_week",
		BaseSQL:           `SELECT a FROM t`,
	})
	if err == nil {
		t.Fatal("expected error when the rewrite call fails")
	}
}
