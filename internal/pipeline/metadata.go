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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

// queryRequirements classifies what kinds of columns a question needs.
type queryRequirements struct {
	NeedsCounting    bool `json:"needs_counting"`
	NeedsDates       bool `json:"needs_dates"`
	NeedsLocations   bool `json:"needs_locations"`
	NeedsStatus      bool `json:"needs_status"`
	NeedsCategories  bool `json:"needs_categories"`
	NeedsAmounts     bool `json:"needs_amounts"`
	NeedsPeople      bool `json:"needs_people"`
	NeedsVehicles    bool `json:"needs_vehicles"`
	NeedsComparisons bool `json:"needs_comparisons"`
}

// defaultRequirements is the fallback when the model returns malformed
// JSON: counting is the one need nearly every analytical question has.
func defaultRequirements() queryRequirements {
	return queryRequirements{NeedsCounting: true}
}

// MetadataRetriever decomposes a question into semantic probes and fans
// them out against the column catalog.
type MetadataRetriever struct {
	index        VectorIndex
	embedder     llm.EmbeddingProvider
	completion   llm.CompletionProvider
	probeTopK    int
	workers      int
	probeTimeout time.Duration
	sentinel     string
	logger       *slog.Logger
}

// MetadataRetrieverConfig configures a MetadataRetriever.
type MetadataRetrieverConfig struct {
	Index        VectorIndex
	Embedder     llm.EmbeddingProvider
	Completion   llm.CompletionProvider
	ProbeTopK    int
	Workers      int
	ProbeTimeout time.Duration
	// SentinelColumn is always present in the output, guaranteeing every
	// downstream stage a usable primary date column.
	SentinelColumn string
	Logger         *slog.Logger
}

// NewMetadataRetriever creates a metadata retriever.
func NewMetadataRetriever(cfg MetadataRetrieverConfig) *MetadataRetriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProbeTopK <= 0 {
		cfg.ProbeTopK = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 45 * time.Second
	}
	return &MetadataRetriever{
		index:        cfg.Index,
		embedder:     cfg.Embedder,
		completion:   cfg.Completion,
		probeTopK:    cfg.ProbeTopK,
		workers:      cfg.Workers,
		probeTimeout: cfg.ProbeTimeout,
		sentinel:     cfg.SentinelColumn,
		logger:       logger,
	}
}

// Retrieve returns the deduplicated catalog columns relevant to the
// question. Individual probe failures and timeouts are logged and
// skipped, never fatal to the batch.
func (r *MetadataRetriever) Retrieve(ctx context.Context, question string) []database.CatalogColumn {
	reqs := r.classifyRequirements(ctx, question)
	probes := r.expandProbes(ctx, question, reqs)

	hits := r.runProbes(ctx, probes)
	columns := dedupeColumns(hits)
	columns = ensureColumn(columns, r.sentinel)

	r.logger.Debug("metadata retrieved",
		"probes", len(probes),
		"columns", len(columns))
	return columns
}

// classifyRequirements asks the model for the boolean needs object,
// falling back to the default on any failure.
func (r *MetadataRetriever) classifyRequirements(ctx context.Context, question string) queryRequirements {
	prompt := `Classify what a data question needs. Respond with ONLY a JSON object:
{"needs_counting": bool, "needs_dates": bool, "needs_locations": bool, "needs_status": bool, "needs_categories": bool, "needs_amounts": bool, "needs_people": bool, "needs_vehicles": bool, "needs_comparisons": bool}

Question: ` + question

	resp, err := r.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		r.logger.Warn("requirements classification failed", "error", err)
		return defaultRequirements()
	}

	reqs, ok := parseRequirements(resp.Content)
	if !ok {
		r.logger.Warn("requirements response unparseable, using default")
		return defaultRequirements()
	}
	return reqs
}

// parseRequirements extracts the first JSON object from free text.
func parseRequirements(text string) (queryRequirements, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return queryRequirements{}, false
	}

	var reqs queryRequirements
	if err := json.Unmarshal([]byte(text[start:end+1]), &reqs); err != nil {
		return queryRequirements{}, false
	}
	return reqs, true
}

// expandProbes asks the model for free-text column-description probes,
// one per line. The classified requirements steer the expansion; on LLM
// failure they drive the fallback probes directly.
func (r *MetadataRetriever) expandProbes(
	ctx context.Context,
	question string,
	reqs queryRequirements,
) []string {
	needs := requirementNames(reqs)
	if len(needs) == 0 {
		needs = []string{"counting records"}
	}

	prompt := fmt.Sprintf(`Given a data question, write short search probes describing the
database columns needed to answer it, one per line, no numbering, no
other text. 2 to 6 probes.

The question needs: %s.

Question: %s`, strings.Join(needs, ", "), question)

	resp, err := r.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		r.logger.Warn("probe expansion failed, deriving from requirements", "error", err)
		return fallbackProbes(reqs)
	}

	var probes []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			probes = append(probes, line)
		}
	}
	if len(probes) == 0 {
		return fallbackProbes(reqs)
	}
	return probes
}

// requirementNames renders the set flags as prompt-ready phrases.
func requirementNames(reqs queryRequirements) []string {
	var names []string
	if reqs.NeedsCounting {
		names = append(names, "counting records")
	}
	if reqs.NeedsDates {
		names = append(names, "dates or time windows")
	}
	if reqs.NeedsLocations {
		names = append(names, "locations")
	}
	if reqs.NeedsStatus {
		names = append(names, "status flags")
	}
	if reqs.NeedsCategories {
		names = append(names, "categories or types")
	}
	if reqs.NeedsAmounts {
		names = append(names, "monetary amounts")
	}
	if reqs.NeedsPeople {
		names = append(names, "people")
	}
	if reqs.NeedsVehicles {
		names = append(names, "vehicles")
	}
	if reqs.NeedsComparisons {
		names = append(names, "comparisons between measures")
	}
	return names
}

// fallbackProbes derives probes directly from the requirements flags.
func fallbackProbes(reqs queryRequirements) []string {
	var probes []string
	if reqs.NeedsCounting {
		probes = append(probes, "record identifier column for counting")
	}
	if reqs.NeedsDates {
		probes = append(probes, "date column for time filtering")
	}
	if reqs.NeedsLocations {
		probes = append(probes, "state or location column")
	}
	if reqs.NeedsStatus {
		probes = append(probes, "status or open closed flag column")
	}
	if reqs.NeedsCategories {
		probes = append(probes, "category or type classification column")
	}
	if reqs.NeedsAmounts {
		probes = append(probes, "monetary amount or cost column")
	}
	if reqs.NeedsPeople {
		probes = append(probes, "driver or person name column")
	}
	if reqs.NeedsVehicles {
		probes = append(probes, "vehicle or unit column")
	}
	if reqs.NeedsComparisons {
		probes = append(probes, "numeric measure column for comparison")
	}
	if len(probes) == 0 {
		probes = append(probes, "record identifier column for counting")
	}
	return probes
}

// runProbes fans the probes out across a bounded worker pool, collecting
// partial results. A probe that times out is abandoned, not retried.
func (r *MetadataRetriever) runProbes(ctx context.Context, probes []string) []database.CatalogColumn {
	sem := make(chan struct{}, r.workers)
	var (
		mu   sync.Mutex
		hits []database.CatalogColumn
		wg   sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(probe string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
			defer cancel()

			embedding, err := r.embedder.Embed(probeCtx, probe)
			if err != nil {
				r.logger.Warn("probe embedding failed", "probe", probe, "error", err)
				return
			}

			results, err := r.index.SearchColumns(probeCtx, embedding, r.probeTopK)
			if err != nil {
				r.logger.Warn("probe search failed", "probe", probe, "error", err)
				return
			}

			mu.Lock()
			hits = append(hits, results...)
			mu.Unlock()
		}(probe)
	}

	wg.Wait()
	return hits
}

// dedupeColumns collapses hits by column name, keeping the highest-scored
// instance of each. Output order is first-seen order; callers must not
// rely on ranking beyond per-column score.
func dedupeColumns(hits []database.CatalogColumn) []database.CatalogColumn {
	best := make(map[string]int, len(hits))
	out := make([]database.CatalogColumn, 0, len(hits))

	for _, h := range hits {
		idx, seen := best[h.ColumnName]
		if !seen {
			best[h.ColumnName] = len(out)
			out = append(out, h)
			continue
		}
		if h.Score > out[idx].Score {
			out[idx] = h
		}
	}

	return out
}

// ensureColumn appends a sentinel catalog entry if no hit surfaced it.
func ensureColumn(columns []database.CatalogColumn, name string) []database.CatalogColumn {
	if name == "" {
		return columns
	}
	for _, c := range columns {
		if c.ColumnName == name {
			return columns
		}
	}
	return append(columns, database.CatalogColumn{
		ColumnName:  name,
		DataType:    "timestamp",
		Description: "Primary event date for the record",
	})
}
