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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetiq/claims-analyst/internal/config"
	"github.com/fleetiq/claims-analyst/internal/database"
	"github.com/fleetiq/claims-analyst/internal/llm/factory"
)

// ErrSessionNotFound is returned for operations on unknown thread IDs.
var ErrSessionNotFound = errors.New("session not found")

// boundIndex binds the configured index table names onto the pool so the
// retrieval stages stay table-agnostic.
type boundIndex struct {
	pool         *database.Pool
	kpiTable     string
	catalogTable string
}

var _ VectorIndex = (*boundIndex)(nil)

func (b *boundIndex) SearchKPIs(ctx context.Context, embedding []float32, topK int) ([]database.KPIRecord, error) {
	return b.pool.SearchKPIs(ctx, embedding, b.kpiTable, topK)
}

func (b *boundIndex) SearchColumns(ctx context.Context, embedding []float32, topK int) ([]database.CatalogColumn, error) {
	return b.pool.SearchColumns(ctx, embedding, b.catalogTable, topK)
}

// boundWarehouse binds the analytical table name for value lookups.
type boundWarehouse struct {
	pool        *database.Pool
	claimsTable string
}

var _ SQLExecutor = (*boundWarehouse)(nil)
var _ ValueLookup = (*boundWarehouse)(nil)

func (b *boundWarehouse) Execute(ctx context.Context, sql string) (*database.QueryResult, error) {
	return b.pool.Execute(ctx, sql)
}

func (b *boundWarehouse) ColumnValues(ctx context.Context, column string) ([]string, error) {
	return b.pool.ColumnValues(ctx, b.claimsTable, column)
}

// Manager owns the warehouse pool, the LLM providers, the orchestrator,
// and the session registry. It is the single entry point the HTTP layer
// talks to.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	orch   *Orchestrator
	pool   *database.Pool
	logger *slog.Logger
}

// NewManager builds the full pipeline from configuration: database pool,
// API keys, providers, and every stage.
func NewManager(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := database.NewPool(ctx, cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	keyLoader := config.NewAPIKeyLoader(cfg.APIKeys)
	apiKeys, err := keyLoader.LoadRequiredKeys(cfg.LLM)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}

	embedder, err := factory.NewEmbeddingProvider(
		cfg.LLM.Embedding.Provider, cfg.LLM.Embedding.Model, apiKeys)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	completion, err := factory.NewCompletionProvider(
		cfg.LLM.Chat.Provider, cfg.LLM.Chat.Model, apiKeys)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create completion provider: %w", err)
	}

	index := &boundIndex{
		pool:         pool,
		kpiTable:     cfg.Indexes.KPITable,
		catalogTable: cfg.Indexes.CatalogTable,
	}
	warehouse := &boundWarehouse{
		pool:        pool,
		claimsTable: cfg.Pipeline.ClaimsTable,
	}

	orch := NewOrchestrator(OrchestratorConfig{
		Completion: completion,
		KPI:        NewKPIRetriever(index, embedder, cfg.Pipeline.KPITopK, logger),
		Metadata: NewMetadataRetriever(MetadataRetrieverConfig{
			Index:          index,
			Embedder:       embedder,
			Completion:     completion,
			ProbeTopK:      cfg.Pipeline.ProbeTopK,
			Workers:        cfg.Pipeline.ProbeWorkers,
			ProbeTimeout:   time.Duration(cfg.Pipeline.ProbeTimeoutSecs) * time.Second,
			SentinelColumn: cfg.Pipeline.DefaultDateColumn,
			Logger:         logger,
		}),
		Relevance: NewRelevanceChecker(completion, logger),
		Editor:    NewKPIEditor(completion, warehouse, logger),
		Generator: NewSQLGenerator(completion, warehouse, cfg.Pipeline, logger),
		Modifier:  NewSQLModifier(completion, logger),
		Executor:  NewQueryExecutor(warehouse, logger),
		Logger:    logger,
	})

	logger.Info("pipeline initialized",
		"embedding_provider", cfg.LLM.Embedding.Provider,
		"chat_provider", cfg.LLM.Chat.Provider,
		"claims_table", cfg.Pipeline.ClaimsTable)

	return &Manager{
		sessions: make(map[string]*Session),
		orch:     orch,
		pool:     pool,
		logger:   logger,
	}, nil
}

// CreateThread creates a new conversation thread and returns its ID.
func (m *Manager) CreateThread() *Session {
	session := NewSession(uuid.NewString())

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("thread created", "thread_id", session.ID())
	return session
}

// Get returns the session for a thread ID.
func (m *Manager) Get(threadID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[threadID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Process runs one user message through the pipeline on its thread.
func (m *Manager) Process(ctx context.Context, threadID, text string) (*PipelineState, error) {
	session, err := m.Get(threadID)
	if err != nil {
		return nil, err
	}
	return m.orch.Handle(ctx, session, text), nil
}

// History returns the full conversation log for a thread.
func (m *Manager) History(threadID string) ([]ConversationTurn, error) {
	session, err := m.Get(threadID)
	if err != nil {
		return nil, err
	}
	return session.Turns(), nil
}

// SQLHistory returns the SQL history ring for a thread, oldest first.
func (m *Manager) SQLHistory(threadID string) ([]SQLHistoryEntry, error) {
	session, err := m.Get(threadID)
	if err != nil {
		return nil, err
	}
	return session.SQLHistory(), nil
}

// ResetThread clears a thread's conversation and SQL history.
func (m *Manager) ResetThread(threadID string) error {
	session, err := m.Get(threadID)
	if err != nil {
		return err
	}
	session.Reset()
	m.logger.Info("thread reset", "thread_id", threadID)
	return nil
}

// Close releases the database pool.
func (m *Manager) Close() {
	m.pool.Close()
}
