// Package prices fetches daily OHLCV history and optionally persists it.
package prices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// DefaultPeriod is used when no period token is given.
const DefaultPeriod = "1y"

// ErrInvalidPeriod is returned for an unrecognised period token.
var ErrInvalidPeriod = errors.New("invalid period")

// lookback describes a period token. Bars > 0 keeps only the last N trading days.
type lookback struct {
	years, months, days int
	bars                int
	ytd, max            bool
}

var periods = map[string]lookback{
	"1d":  {days: -7, bars: 1},
	"5d":  {days: -14, bars: 5},
	"1mo": {months: -1},
	"3mo": {months: -3},
	"6mo": {months: -6},
	"1y":  {years: -1},
	"2y":  {years: -2},
	"5y":  {years: -5},
	"10y": {years: -10},
	"ytd": {ytd: true},
	"max": {max: true},
}

// ValidPeriod reports whether a period token is supported.
func ValidPeriod(period string) bool {
	_, ok := periods[period]
	return ok
}

// Service implements PriceService
type Service struct {
	eodhd   interfaces.EODHDClient
	storage interfaces.StorageManager
	logger  arbor.ILogger
	now     func() time.Time
}

var _ interfaces.PriceService = (*Service)(nil)

// NewService creates a new price service. storage may be nil, in which case
// persist requests are ignored.
func NewService(eodhd interfaces.EODHDClient, storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		eodhd:   eodhd,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchHistory retrieves the daily series for a period, ascending by date. When
// persist is set, bars for dates not yet stored are inserted in one transaction.
// The full series is returned regardless of how many rows were new.
func (s *Service) FetchHistory(ctx context.Context, ticker, period string, persist bool) (*models.PriceHistory, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if period == "" {
		period = DefaultPeriod
	}
	lb, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)", ErrInvalidPeriod, period)
	}

	now := s.now().UTC()
	var opts []interfaces.EODOption
	if from, bounded := lb.from(now); bounded {
		opts = append(opts, interfaces.WithDateRange(from, now))
	}

	resp, err := s.eodhd.GetEOD(ctx, ticker, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", ticker, err)
	}

	bars := resp.Data
	if lb.bars > 0 && len(bars) > lb.bars {
		bars = bars[len(bars)-lb.bars:]
	}

	history := &models.PriceHistory{
		Ticker: ticker,
		Period: period,
		Bars:   bars,
	}

	if persist && s.storage != nil {
		inserted, err := s.storage.PriceStore().UpsertBars(ctx, ticker, bars)
		if err != nil {
			return nil, fmt.Errorf("failed to persist price history for %s: %w", ticker, err)
		}
		history.Persisted = true
		history.NewRows = inserted
	}

	s.logger.Debug().
		Str("ticker", ticker).
		Str("period", period).
		Int("bars", len(bars)).
		Bool("persisted", history.Persisted).
		Int("new_rows", history.NewRows).
		Msg("Price history fetched")

	return history, nil
}

// StoredHistory returns the persisted bars for a ticker.
func (s *Service) StoredHistory(ctx context.Context, ticker string) ([]models.EODBar, error) {
	if s.storage == nil {
		return nil, errors.New("no price store configured")
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	bars, err := s.storage.PriceStore().GetBars(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored prices for %s: %w", ticker, err)
	}
	return bars, nil
}

func (lb lookback) from(now time.Time) (time.Time, bool) {
	switch {
	case lb.max:
		return time.Time{}, false
	case lb.ytd:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), true
	}
	return now.AddDate(lb.years, lb.months, lb.days), true
}
