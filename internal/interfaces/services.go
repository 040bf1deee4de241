package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// FundamentalsService ingests financial statements
type FundamentalsService interface {
	FetchAndStore(ctx context.Context, ticker string) (*models.IngestResult, error)
}

// PriceService fetches (and optionally persists) daily price history
type PriceService interface {
	FetchHistory(ctx context.Context, ticker, period string, persist bool) (*models.PriceHistory, error)
	StoredHistory(ctx context.Context, ticker string) ([]models.EODBar, error)
}

// RatioService computes the ratio bundle from stored statements
type RatioService interface {
	Calculate(ctx context.Context, ticker string) *models.RatioReport
}

// TechnicalsService summarises a price series with technical indicators
type TechnicalsService interface {
	Snapshot(ctx context.Context, ticker, period string) (*models.TechnicalSnapshot, error)
}

// EarningsService looks up upcoming earnings
type EarningsService interface {
	Upcoming(ctx context.Context, ticker, horizon string) (*models.EarningsCalendar, error)
}

// AnalysisAgent runs the LLM tool loop over the ratio calculator
type AnalysisAgent interface {
	// Analyze returns the agent's final output, parsed as JSON when possible
	Analyze(ctx context.Context, ticker, query string) (any, error)
}
