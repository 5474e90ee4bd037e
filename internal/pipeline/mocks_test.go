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
	"github.com/fleetiq/claims-analyst/internal/llm"
)

// MockEmbeddingProvider implements llm.EmbeddingProvider for testing.
type MockEmbeddingProvider struct {
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	DimensionsVal  int
	ModelNameVal   string
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbeddingProvider) EmbedBatch(
	ctx context.Context,
	texts []string,
) ([][]float32, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	results := make([][]float32, len(texts))
	for i := range texts {
		results[i] = []float32{0.1, 0.2, 0.3}
	}
	return results, nil
}

func (m *MockEmbeddingProvider) Dimensions() int {
	if m.DimensionsVal > 0 {
		return m.DimensionsVal
	}
	return 768
}

func (m *MockEmbeddingProvider) ModelName() string {
	if m.ModelNameVal != "" {
		return m.ModelNameVal
	}
	return "mock-embedding-model"
}

// MockCompletionProvider implements llm.CompletionProvider for testing.
type MockCompletionProvider struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	ModelNameVal string
}

func (m *MockCompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &llm.CompletionResponse{
		Content:      "This is a mock response.",
		FinishReason: "stop",
		Usage: llm.TokenUsage{
			PromptTokens:     100,
			CompletionTokens: 20,
			TotalTokens:      120,
		},
	}, nil
}

func (m *MockCompletionProvider) ModelName() string {
	if m.ModelNameVal != "" {
		return m.ModelNameVal
	}
	return "mock-completion-model"
}

// MockVectorIndex implements VectorIndex for testing.
type MockVectorIndex struct {
	SearchKPIsFunc    func(ctx context.Context, embedding []float32, topK int) ([]database.KPIRecord, error)
	SearchColumnsFunc func(ctx context.Context, embedding []float32, topK int) ([]database.CatalogColumn, error)
}

func (m *MockVectorIndex) SearchKPIs(
	ctx context.Context,
	embedding []float32,
	topK int,
) ([]database.KPIRecord, error) {
	if m.SearchKPIsFunc != nil {
		return m.SearchKPIsFunc(ctx, embedding, topK)
	}
	return nil, nil
}

func (m *MockVectorIndex) SearchColumns(
	ctx context.Context,
	embedding []float32,
	topK int,
) ([]database.CatalogColumn, error) {
	if m.SearchColumnsFunc != nil {
		return m.SearchColumnsFunc(ctx, embedding, topK)
	}
	return nil, nil
}

// MockSQLExecutor implements SQLExecutor for testing.
type MockSQLExecutor struct {
	ExecuteFunc func(ctx context.Context, sql string) (*database.QueryResult, error)
	Executed    []string
}

func (m *MockSQLExecutor) Execute(ctx context.Context, sql string) (*database.QueryResult, error) {
	m.Executed = append(m.Executed, sql)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, sql)
	}
	return &database.QueryResult{
		Columns:  []string{"count"},
		Rows:     [][]interface{}{{int64(42)}},
		RowCount: 1,
	}, nil
}

// MockValueLookup implements ValueLookup for testing.
type MockValueLookup struct {
	ColumnValuesFunc func(ctx context.Context, column string) ([]string, error)
}

func (m *MockValueLookup) ColumnValues(ctx context.Context, column string) ([]string, error) {
	if m.ColumnValuesFunc != nil {
		return m.ColumnValuesFunc(ctx, column)
	}
	return nil, nil
}
