// Package postgres implements the storage interfaces on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// schema is applied at start; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS financial_statements (
		id BIGSERIAL PRIMARY KEY,
		ticker TEXT NOT NULL,
		statement_type TEXT NOT NULL,
		period DATE NOT NULL,
		data JSONB NOT NULL,
		CONSTRAINT _ticker_statement_period_uc UNIQUE (ticker, statement_type, period)
	)`,
	`ALTER TABLE financial_statements ADD COLUMN IF NOT EXISTS schema_version TEXT NOT NULL DEFAULT 'unknown'`,
	`ALTER TABLE financial_statements ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`CREATE INDEX IF NOT EXISTS ix_financial_statements_ticker ON financial_statements (ticker)`,
	`CREATE TABLE IF NOT EXISTS ohlcv_data (
		id BIGSERIAL PRIMARY KEY,
		ticker TEXT NOT NULL,
		date DATE NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume BIGINT NOT NULL CHECK (volume >= 0),
		CONSTRAINT _ticker_date_uc UNIQUE (ticker, date)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_ohlcv_data_ticker ON ohlcv_data (ticker)`,
}

// Manager implements interfaces.StorageManager on a pgx connection pool.
type Manager struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger

	statementStore *StatementStore
	priceStore     *PriceStore
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager connects to Postgres, creates the schema if absent and initialises the stores.
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*Manager, error) {
	return NewManagerFromURL(ctx, logger, config.DatabaseURL(), config.MaxConns)
}

// NewManagerFromURL is NewManager for an explicit connection string.
func NewManagerFromURL(ctx context.Context, logger arbor.ILogger, databaseURL string, maxConns int32) (*Manager, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	m := &Manager{
		pool:           pool,
		logger:         logger,
		statementStore: NewStatementStore(pool, logger),
		priceStore:     NewPriceStore(pool, logger),
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("Postgres storage manager initialized")

	return m, nil
}

func (m *Manager) StatementStore() interfaces.StatementStore {
	return m.statementStore
}

func (m *Manager) PriceStore() interfaces.PriceStore {
	return m.priceStore
}

// Ping checks the pool can reach the server
func (m *Manager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close releases the pool
func (m *Manager) Close() error {
	m.pool.Close()
	return nil
}
