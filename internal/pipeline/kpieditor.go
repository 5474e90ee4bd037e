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

// EditResult is the outcome of a KPI edit.
type EditResult struct {
	EditedSQL     string
	Modifications []string
	Confidence    string
}

// KPIEditor patches a KPI's canned SQL for questions that need a minor
// change: added filter, different window, extra grouping.
type KPIEditor struct {
	completion llm.CompletionProvider
	values     ValueLookup
	logger     *slog.Logger
}

// NewKPIEditor creates a KPI editor.
func NewKPIEditor(completion llm.CompletionProvider, values ValueLookup, logger *slog.Logger) *KPIEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &KPIEditor{completion: completion, values: values, logger: logger}
}

// Edit performs the three-step refinement: identify extra needed columns,
// fetch their exact value vocabularies, and patch the canned SQL. Requires
// a present KPI and at least one conversation message.
func (e *KPIEditor) Edit(
	ctx context.Context,
	question string,
	kpi *database.KPIRecord,
	catalog []database.CatalogColumn,
	conversation []ConversationTurn,
) (*EditResult, error) {
	if kpi == nil {
		return nil, fmt.Errorf("no KPI to edit")
	}
	if len(conversation) == 0 {
		return nil, fmt.Errorf("no conversation context for edit")
	}

	// Step 1: which catalog columns does the change need?
	needed := e.neededColumns(ctx, question, catalog)

	// Step 2: ground free-text filter terms in exact column values.
	vocabularies := e.groundValues(ctx, needed)

	// Step 3: patch the SQL.
	edited, err := e.patchSQL(ctx, question, kpi, needed, catalog, vocabularies)
	if err != nil {
		return nil, err
	}

	edited = stripSQLFences(edited)
	if !isPlausibleSelect(edited) {
		return nil, fmt.Errorf("edited SQL is not a SELECT statement")
	}

	result := &EditResult{
		EditedSQL:  edited,
		Confidence: ConfidenceMedium,
	}
	if edited == kpi.SQLQuery {
		result.Modifications = []string{"No changes needed"}
	} else {
		result.Modifications = []string{fmt.Sprintf("adjusted KPI %q for: %s", kpi.MetricName, question)}
	}

	return result, nil
}

// neededColumns asks which catalog columns the edit additionally needs.
// Any returned name that is not a literal catalog column is discarded as
// a hallucination.
func (e *KPIEditor) neededColumns(
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

	prompt := fmt.Sprintf(`A predefined SQL query needs a small change to answer a question.
Which of these columns (if any) does the change require? Answer with the
exact column names, one per line, or NONE.

Available columns: %s

Question: %s`, strings.Join(names, ", "), question)

	resp, err := e.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		e.logger.Warn("column-need analysis failed", "error", err)
		return nil
	}

	var needed []string
	for _, line := range strings.Split(resp.Content, "\n") {
		name := strings.Trim(strings.TrimSpace(line), `"'`)
		if name == "" || strings.EqualFold(name, "NONE") {
			continue
		}
		if !known[name] {
			e.logger.Debug("discarding hallucinated column", "column", name)
			continue
		}
		needed = append(needed, name)
	}
	return needed
}

// groundValues fetches the exact-value vocabulary for each column.
// Absent or empty vocabularies are simply omitted.
func (e *KPIEditor) groundValues(ctx context.Context, columns []string) map[string][]string {
	vocabularies := make(map[string][]string)
	for _, col := range columns {
		values, err := e.values.ColumnValues(ctx, col)
		if err != nil {
			e.logger.Warn("value lookup failed", "column", col, "error", err)
			continue
		}
		if len(values) > 0 {
			vocabularies[col] = values
		}
	}
	return vocabularies
}

// patchSQL asks the model to rewrite the canned SQL, returning only SQL text.
func (e *KPIEditor) patchSQL(
	ctx context.Context,
	question string,
	kpi *database.KPIRecord,
	needed []string,
	catalog []database.CatalogColumn,
	vocabularies map[string][]string,
) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Modify this PostgreSQL query to answer the question. Keep the original analysis; change only what the question requires.\n\n")
	fmt.Fprintf(&sb, "Original SQL:\n%s\n\n", kpi.SQLQuery)
	fmt.Fprintf(&sb, "Question: %s\n", question)

	if len(needed) > 0 {
		sb.WriteString("\nRelevant columns:\n")
		for _, c := range catalog {
			for _, n := range needed {
				if c.ColumnName == n {
					fmt.Fprintf(&sb, "- %q (%s): %s\n", c.ColumnName, c.DataType, c.Description)
				}
			}
		}
	}

	if len(vocabularies) > 0 {
		sb.WriteString("\nExact values (use these literals, never paraphrase):\n")
		for col, values := range vocabularies {
			fmt.Fprintf(&sb, "- %q: %s\n", col, strings.Join(values, ", "))
		}
	}

	sb.WriteString(`
Rules:
- Double-quote every column name that contains spaces
- Preserve the original grouping and ordering unless the question changes them
- Return ONLY the SQL text, no explanation, no code fences`)

	resp, err := e.completion.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("SQL patch failed: %w", err)
	}

	return resp.Content, nil
}
