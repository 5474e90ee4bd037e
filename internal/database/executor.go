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
	"time"
)

// QueryResult is the uniform envelope for warehouse query results. Rows are
// generic ordered values aligned with Columns; temporal values are
// normalized to ISO-8601 text before leaving this boundary.
type QueryResult struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Execute runs a SQL query against the warehouse and normalizes the result.
// Single attempt, no retry; the caller owns failure handling.
func (p *Pool) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	start := time.Now()

	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var data [][]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		data = append(data, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{
		Columns:  columns,
		Rows:     data,
		RowCount: len(data),
		Elapsed:  time.Since(start),
	}, nil
}

// normalizeValue converts driver values into display-safe forms.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return v
	}
}
