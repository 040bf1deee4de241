// Package ratios computes P/E, P/B, ROE and the Altman Z-Score from stored statements.
package ratios

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Service implements RatioService
type Service struct {
	storage interfaces.StorageManager
	eodhd   interfaces.EODHDClient
	logger  arbor.ILogger
}

var _ interfaces.RatioService = (*Service)(nil)

// NewService creates a new ratio service
func NewService(storage interfaces.StorageManager, eodhd interfaces.EODHDClient, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		eodhd:   eodhd,
		logger:  logger,
	}
}

// Calculate returns the ratio bundle for a ticker. Failures, including panics,
// come back as an error envelope rather than a Go error.
func (s *Service) Calculate(ctx context.Context, ticker string) (report *models.RatioReport) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("ticker", ticker).Str("panic", fmt.Sprint(r)).Msg("Ratio calculation panicked")
			report = unexpected(fmt.Errorf("%v", r))
		}
	}()

	balance, income, err := s.latestStatements(ctx, ticker)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewRatioError(fmt.Sprintf("Financial data not found for %s. Please fetch it first.", ticker))
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to load statements")
		return unexpected(err)
	}

	marketCap, err := s.eodhd.GetMarketCap(ctx, ticker)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to fetch market cap")
		return unexpected(err)
	}

	in, warnings := Extract(balance, income)
	in.MarketCap = marketCap

	report = Compute(in)
	report.Warnings = warnings

	if len(warnings) > 0 {
		s.logger.Warn().Str("ticker", ticker).Strs("warnings", warnings).Msg("Ratio inputs incomplete")
	}
	s.logger.Debug().
		Str("ticker", ticker).
		Str("balance_period", balance.Period.Format("2006-01-02")).
		Str("income_period", income.Period.Format("2006-01-02")).
		Msg("Ratios calculated")

	return report
}

func (s *Service) latestStatements(ctx context.Context, ticker string) (*models.FinancialStatement, *models.FinancialStatement, error) {
	store := s.storage.StatementStore()

	balance, err := store.LatestStatement(ctx, ticker, models.BalanceSheet)
	if err != nil {
		return nil, nil, err
	}
	income, err := store.LatestStatement(ctx, ticker, models.IncomeStatement)
	if err != nil {
		return nil, nil, err
	}
	return balance, income, nil
}

func unexpected(err error) *models.RatioReport {
	return models.NewRatioError(fmt.Sprintf("An unexpected error occurred during analysis: %v", err))
}
