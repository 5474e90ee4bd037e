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
	"strings"

	"github.com/jackc/pgx/v5"
)

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	return pgx.Identifier(parts)
}

// formatVector converts a float32 slice to pgvector string format [x,y,z,...].
func formatVector(embedding []float32) string {
	strs := make([]string, len(embedding))
	for i, v := range embedding {
		strs[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// KPIRecord is a predefined metric from the KPI index: a named analytical
// query with a human description and canned SQL.
type KPIRecord struct {
	MetricName   string   `json:"metric_name"`
	Description  string   `json:"description"`
	SQLQuery     string   `json:"sql_query"`
	TableColumns []string `json:"table_columns"`
	Score        float64  `json:"score"`
}

// CatalogColumn is a described column of the analytical table, from the
// column-catalog index. Treated as immutable reference data.
type CatalogColumn struct {
	ColumnName  string  `json:"column_name"`
	DataType    string  `json:"data_type"`
	Description string  `json:"description"`
	TableName   string  `json:"table_name"`
	Score       float64 `json:"score"`
}

// SearchKPIs performs a vector similarity search against the KPI index.
// Returns results ordered by similarity (highest first).
func (p *Pool) SearchKPIs(
	ctx context.Context,
	embedding []float32,
	table string,
	topK int,
) ([]KPIRecord, error) {
	// The <=> operator returns cosine distance, so similarity is 1 - distance
	query := fmt.Sprintf(`
		SELECT
			metric_name,
			description,
			sql_query,
			table_columns,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`,
		parseTableIdentifier(table).Sanitize(),
	)

	rows, err := p.pool.Query(ctx, query, formatVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("kpi search failed: %w", err)
	}
	defer rows.Close()

	var results []KPIRecord
	for rows.Next() {
		var r KPIRecord
		if err := rows.Scan(&r.MetricName, &r.Description, &r.SQLQuery,
			&r.TableColumns, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// SearchColumns performs a vector similarity search against the column
// catalog. Returns results ordered by similarity (highest first).
func (p *Pool) SearchColumns(
	ctx context.Context,
	embedding []float32,
	table string,
	topK int,
) ([]CatalogColumn, error) {
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			description,
			table_name,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`,
		parseTableIdentifier(table).Sanitize(),
	)

	rows, err := p.pool.Query(ctx, query, formatVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer rows.Close()

	var results []CatalogColumn
	for rows.Next() {
		var r CatalogColumn
		if err := rows.Scan(&r.ColumnName, &r.DataType, &r.Description,
			&r.TableName, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}
