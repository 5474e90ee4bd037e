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
	"time"

	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

func TestDedupeColumns(t *testing.T) {
	hits := []database.CatalogColumn{
		{ColumnName: "State", Score: 0.7},
		{ColumnName: "Claim Type", Score: 0.9},
		{ColumnName: "State", Score: 0.85},
		{ColumnName: "Claim Type", Score: 0.6},
	}

	got := dedupeColumns(hits)

	if len(got) != 2 {
		t.Fatalf("expected 2 unique columns, got %d", len(got))
	}
	// First-seen order is preserved.
	if got[0].ColumnName != "State" || got[1].ColumnName != "Claim Type" {
		t.Errorf("unexpected order: %v, %v", got[0].ColumnName, got[1].ColumnName)
	}
	// Highest score per column survives.
	if got[0].Score != 0.85 {
		t.Errorf("State score = %v, want 0.85", got[0].Score)
	}
	if got[1].Score != 0.9 {
		t.Errorf("Claim Type score = %v, want 0.9", got[1].Score)
	}
}

func TestDedupeColumnsIdempotent(t *testing.T) {
	hits := []database.CatalogColumn{
		{ColumnName: "State", Score: 0.7},
		{ColumnName: "State", Score: 0.9},
	}

	once := dedupeColumns(hits)
	twice := dedupeColumns(once)

	if len(once) != len(twice) {
		t.Fatalf("dedupe is not idempotent: %d vs %d", len(once), len(twice))
	}
	if once[0].Score != twice[0].Score {
		t.Error("scores changed on second dedupe")
	}
}

func TestEnsureColumn(t *testing.T) {
	t.Run("appended when missing", func(t *testing.T) {
		cols := []database.CatalogColumn{{ColumnName: "State"}}
		got := ensureColumn(cols, "Occurrence Date")
		if len(got) != 2 {
			t.Fatalf("expected sentinel appended, got %d columns", len(got))
		}
		if got[1].ColumnName != "Occurrence Date" {
			t.Errorf("sentinel name = %q", got[1].ColumnName)
		}
		if got[1].DataType != "timestamp" {
			t.Errorf("sentinel type = %q, want timestamp", got[1].DataType)
		}
	})

	t.Run("not duplicated when present", func(t *testing.T) {
		cols := []database.CatalogColumn{
			{ColumnName: "Occurrence Date", Score: 0.9},
		}
		got := ensureColumn(cols, "Occurrence Date")
		if len(got) != 1 {
			t.Fatalf("expected no duplicate, got %d columns", len(got))
		}
		if got[0].Score != 0.9 {
			t.Error("existing entry must be untouched")
		}
	})

	t.Run("empty sentinel is a no-op", func(t *testing.T) {
		cols := []database.CatalogColumn{{ColumnName: "State"}}
		if got := ensureColumn(cols, ""); len(got) != 1 {
			t.Errorf("expected unchanged columns, got %d", len(got))
		}
	})
}

func TestParseRequirements(t *testing.T) {
	t.Run("JSON embedded in prose", func(t *testing.T) {
		text := `Here you go:
{"needs_counting": true, "needs_dates": true, "needs_locations": false, "needs_status": false, "needs_categories": false, "needs_amounts": false, "needs_people": false, "needs_vehicles": false, "needs_comparisons": false}
Hope that helps.`
		reqs, ok := parseRequirements(text)
		if !ok {
			t.Fatal("expected parseable requirements")
		}
		if !reqs.NeedsCounting || !reqs.NeedsDates {
			t.Errorf("unexpected flags: %+v", reqs)
		}
		if reqs.NeedsVehicles {
			t.Error("needs_vehicles should be false")
		}
	})

	t.Run("malformed JSON fails", func(t *testing.T) {
		if _, ok := parseRequirements("not json at all"); ok {
			t.Error("expected failure for non-JSON text")
		}
	})
}

func TestExpandProbesIncludesRequirements(t *testing.T) {
	var prompt string
	completion := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			prompt = req.Messages[0].Content
			return &llm.CompletionResponse{Content: "state column\ndate column"}, nil
		},
	}
	r := NewMetadataRetriever(MetadataRetrieverConfig{
		Index:      &MockVectorIndex{},
		Embedder:   &MockEmbeddingProvider{},
		Completion: completion,
	})

	reqs := queryRequirements{NeedsDates: true, NeedsLocations: true}
	probes := r.expandProbes(context.Background(), "claims by state this year", reqs)

	if len(probes) != 2 {
		t.Fatalf("expected 2 probes, got %v", probes)
	}
	// The classified requirements steer the expansion prompt.
	if !strings.Contains(prompt, "dates or time windows") || !strings.Contains(prompt, "locations") {
		t.Errorf("expansion prompt missing requirement phrases:\n%s", prompt)
	}
}

func TestFallbackProbes(t *testing.T) {
	probes := fallbackProbes(queryRequirements{NeedsCounting: true, NeedsLocations: true})
	if len(probes) != 2 {
		t.Fatalf("expected 2 probes, got %d: %v", len(probes), probes)
	}

	// All-false requirements still yield at least one probe.
	probes = fallbackProbes(queryRequirements{})
	if len(probes) == 0 {
		t.Fatal("expected at least one fallback probe")
	}
}

func TestMetadataRetrievePartialFailures(t *testing.T) {
	// First probe's embedding fails, second succeeds; the batch must still
	// return the surviving columns plus the sentinel.
	var calls int
	embedder := &MockEmbeddingProvider{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("embedding down")
			}
			return []float32{0.1}, nil
		},
	}
	index := &MockVectorIndex{
		SearchColumnsFunc: func(ctx context.Context, embedding []float32, topK int) ([]database.CatalogColumn, error) {
			return []database.CatalogColumn{{ColumnName: "State", Score: 0.8}}, nil
		},
	}
	completion := &MockCompletionProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			content := req.Messages[0].Content
			if len(content) > 0 && content[0] == 'C' {
				// Requirements classification prompt starts with "Classify".
				return &llm.CompletionResponse{Content: `{"needs_counting": true, "needs_locations": true}`}, nil
			}
			return &llm.CompletionResponse{Content: "state column\nclaim identifier"}, nil
		},
	}

	r := NewMetadataRetriever(MetadataRetrieverConfig{
		Index:          index,
		Embedder:       embedder,
		Completion:     completion,
		ProbeTopK:      4,
		Workers:        1,
		ProbeTimeout:   time.Second,
		SentinelColumn: "Occurrence Date",
	})

	got := r.Retrieve(context.Background(), "claims by state")

	var names []string
	for _, c := range got {
		names = append(names, c.ColumnName)
	}
	if len(got) != 2 {
		t.Fatalf("expected surviving column plus sentinel, got %v", names)
	}
	if got[len(got)-1].ColumnName != "Occurrence Date" {
		t.Errorf("sentinel must be present, got %v", names)
	}
}
