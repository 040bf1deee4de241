package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// StorageManager coordinates the persistence backend
type StorageManager interface {
	StatementStore() StatementStore
	PriceStore() PriceStore

	// Ping checks connectivity to the backend
	Ping(ctx context.Context) error

	// Close releases all storage resources
	Close() error
}

// StatementStore persists financial statements. Records are insert-only.
type StatementStore interface {
	// ExistingKeys returns the (type, period) keys already stored for a ticker
	ExistingKeys(ctx context.Context, ticker string) (map[models.StatementKey]bool, error)

	// InsertStatements inserts the records in one transaction, skipping any whose
	// identity already exists, and returns how many were created. Nothing is
	// committed when no row was created.
	InsertStatements(ctx context.Context, statements []*models.FinancialStatement) (int, error)

	// LatestStatement returns the most recent statement of a type, or models.ErrNotFound
	LatestStatement(ctx context.Context, ticker string, statementType models.StatementType) (*models.FinancialStatement, error)
}

// PriceStore persists daily OHLCV bars. Existing (ticker, date) rows are never overwritten.
type PriceStore interface {
	// UpsertBars inserts bars not yet stored in one transaction and returns how many were new.
	// On error the transaction is rolled back.
	UpsertBars(ctx context.Context, ticker string, bars []models.EODBar) (int, error)

	// GetBars returns stored bars for a ticker in ascending date order
	GetBars(ctx context.Context, ticker string) ([]models.EODBar, error)
}
