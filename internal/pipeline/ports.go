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

	"github.com/fleetiq/claims-analyst/internal/database"
)

// VectorIndex is the retrieval port over the KPI and column-catalog
// indexes. Both searches are treated as pure functions.
type VectorIndex interface {
	SearchKPIs(ctx context.Context, embedding []float32, topK int) ([]database.KPIRecord, error)
	SearchColumns(ctx context.Context, embedding []float32, topK int) ([]database.CatalogColumn, error)
}

// SQLExecutor is the warehouse execution port.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) (*database.QueryResult, error)
}

// ValueLookup is the exact-value gazetteer port: the known literal values
// of a column, used to ground free-text filter terms.
type ValueLookup interface {
	ColumnValues(ctx context.Context, column string) ([]string, error)
}
