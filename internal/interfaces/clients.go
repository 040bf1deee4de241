// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// EODHDClient provides access to the market-data provider
type EODHDClient interface {
	// GetEOD retrieves end-of-day price data in ascending date order
	GetEOD(ctx context.Context, ticker string, opts ...EODOption) (*models.EODResponse, error)

	// GetFinancialStatements retrieves yearly income, balance sheet and cash flow statements
	GetFinancialStatements(ctx context.Context, ticker string) ([]models.RawStatement, error)

	// GetMarketCap retrieves the current market capitalization (0 when the provider has none)
	GetMarketCap(ctx context.Context, ticker string) (float64, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d, w, m
	Order  string // a, d
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the sampling period for EOD query
func WithPeriod(period string) EODOption {
	return func(p *EODParams) {
		p.Period = period
	}
}

// EarningsCalendarClient provides access to the earnings calendar feed
type EarningsCalendarClient interface {
	// GetEarningsCalendar returns the calendar rows for a symbol and horizon
	GetEarningsCalendar(ctx context.Context, symbol, horizon string) ([]models.EarningsEvent, error)
}

// CompletionClient is a text completion model used by the analysis agent
type CompletionClient interface {
	// Complete returns the model's continuation of prompt, cut at the first stop sequence
	Complete(ctx context.Context, prompt string, stop []string) (string, error)

	// Name identifies the backend and model for logging
	Name() string
}
