//-------------------------------------------------------------------------
//
// FleetIQ Claims Analyst
//
// Portions copyright (c) 2025 - 2026, FleetIQ, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Vocabularies larger than this are not useful for grounding filter
// literals in a prompt.
const maxColumnValues = 200

// ColumnValues returns the distinct non-empty values of a column in the
// analytical table, used to ground free-text filter terms into exact
// database literals. An unknown column or an oversized vocabulary yields
// an empty list, not an error.
func (p *Pool) ColumnValues(
	ctx context.Context,
	table, column string,
) ([]string, error) {
	col := pgx.Identifier{column}.Sanitize()
	query := fmt.Sprintf(`
		SELECT DISTINCT %s::text
		FROM %s
		WHERE %s IS NOT NULL AND btrim(%s::text) <> ''
		ORDER BY 1
		LIMIT $1`,
		col,
		parseTableIdentifier(table).Sanitize(),
		col,
		col,
	)

	rows, err := p.pool.Query(ctx, query, maxColumnValues+1)
	if err != nil {
		return nil, fmt.Errorf("value lookup failed: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// High-cardinality columns (ids, free text) are not vocabularies.
	if len(values) > maxColumnValues {
		return nil, nil
	}

	return values, nil
}
