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

	"github.com/fleetiq/claims-analyst/internal/config"
	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm"
)

// SQLGenerator authors a new query from scratch when no KPI is usable.
type SQLGenerator struct {
	completion llm.CompletionProvider
	values     ValueLookup
	cfg        config.PipelineConfig
	logger     *slog.Logger
}

// NewSQLGenerator creates a SQL generator.
func NewSQLGenerator(
	completion llm.CompletionProvider,
	values ValueLookup,
	cfg config.PipelineConfig,
	logger *slog.Logger,
) *SQLGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLGenerator{completion: completion, values: values, cfg: cfg, logger: logger}
}

// Generate performs the same three-step shape as the KPI editor but the
// final step authors a query from scratch under the fixed rulebook.
func (g *SQLGenerator) Generate(
	ctx context.Context,
	question string,
	catalog []database.CatalogColumn,
) (string, error) {
	needed := g.neededColumns(ctx, question, catalog)
	vocabularies := g.groundValues(ctx, needed)

	sql, err := g.authorSQL(ctx, question, catalog, vocabularies)
	if err != nil {
		return "", err
	}

	sql = stripSQLFences(sql)
	if !isPlausibleSelect(sql) {
		return "", fmt.Errorf("generated SQL is not a SELECT statement")
	}
	return sql, nil
}

// neededColumns asks which catalog columns the query needs, filtering
// hallucinated names against the catalog.
func (g *SQLGenerator) neededColumns(
	ctx context.Context,
	question string,
	catalog []database.CatalogColumn,
) []string {
	if len(catalog) == 0 {
		return nil
	}

	names := make([]string, len(catalog))
	known := make(map[string]bool, len(catalog))
	for i, c := range catalog {
		names[i] = c.ColumnName
		known[c.ColumnName] = true
	}

	prompt := fmt.Sprintf(`Which of these columns are needed to answer the question?
Answer with the exact column names, one per line.

Available columns: %s

Question: %s`, strings.Join(names, ", "), question)

	resp, err := g.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		g.logger.Warn("column-need analysis failed", "error", err)
		return nil
	}

	var needed []string
	for _, line := range strings.Split(resp.Content, "\n") {
		name := strings.Trim(strings.TrimSpace(line), `"'`)
		if name == "" || strings.EqualFold(name, "NONE") {
			continue
		}
		if !known[name] {
			g.logger.Debug("discarding hallucinated column", "column", name)
			continue
		}
		needed = append(needed, name)
	}
	return needed
}

// groundValues fetches the exact-value vocabulary for each column.
func (g *SQLGenerator) groundValues(ctx context.Context, columns []string) map[string][]string {
	vocabularies := make(map[string][]string)
	for _, col := range columns {
		values, err := g.values.ColumnValues(ctx, col)
		if err != nil {
			g.logger.Warn("value lookup failed", "column", col, "error", err)
			continue
		}
		if len(values) > 0 {
			vocabularies[col] = values
		}
	}
	return vocabularies
}

// rulebook returns the fixed generation rules for the target schema.
func (g *SQLGenerator) rulebook() string {
	return fmt.Sprintf(`Rules (follow every one):
1. Query only the table %q.
2. Double-quote every table and column name: column names contain spaces.
3. Date filtering when the question names no date column: questions about
   "opened" use %q, questions about "closed" use %q, everything else uses %q.
4. Code/name pairing: whenever a human-readable "... Name" column is
   selected, select its paired "... Code" column as well; GROUP BY and
   filter on the Code column only; keep both in the SELECT list for display.
5. Exclude null and empty values on every selected column: text columns get
   <col> IS NOT NULL AND btrim(<col>) <> '', other types get IS NOT NULL only.
6. Sort aggregate or date results descending unless the question says otherwise.
7. Row limits use LIMIT n (never a TOP clause).
8. Guard divisions with NULLIF: x / NULLIF(y, 0).
9. Concatenate strings with ||.
10. Period-over-period deltas use window functions (lag() OVER (ORDER BY ...))
    computed over the same grouping level as the GROUP BY, using
    date_trunc for period bucketing and now() with interval arithmetic
    for relative ranges.
Return ONLY the SQL text, no explanation, no code fences.`,
		g.cfg.ClaimsTable,
		g.cfg.OpenedDateColumn,
		g.cfg.ClosedDateColumn,
		g.cfg.DefaultDateColumn,
	)
}

// authorSQL asks the model to write the query under the rulebook.
func (g *SQLGenerator) authorSQL(
	ctx context.Context,
	question string,
	catalog []database.CatalogColumn,
	vocabularies map[string][]string,
) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write a PostgreSQL query answering this question.\n\nQuestion: %s\n", question)

	if len(catalog) > 0 {
		sb.WriteString("\nAvailable columns:\n")
		for _, c := range catalog {
			fmt.Fprintf(&sb, "- %q (%s): %s\n", c.ColumnName, c.DataType, c.Description)
		}
	}

	if len(vocabularies) > 0 {
		sb.WriteString("\nExact values (use these literals, never paraphrase):\n")
		for col, values := range vocabularies {
			fmt.Fprintf(&sb, "- %q: %s\n", col, strings.Join(values, ", "))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(g.rulebook())

	resp, err := g.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("SQL generation failed: %w", err)
	}

	return resp.Content, nil
}
