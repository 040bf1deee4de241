package technicals

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

const supportLookback = 60

// Service implements TechnicalsService
type Service struct {
	prices interfaces.PriceService
	logger arbor.ILogger
}

var _ interfaces.TechnicalsService = (*Service)(nil)

// NewService creates a new technicals service
func NewService(prices interfaces.PriceService, logger arbor.ILogger) *Service {
	return &Service{
		prices: prices,
		logger: logger,
	}
}

// Snapshot fetches the series for a period without persisting it and summarises it.
func (s *Service) Snapshot(ctx context.Context, ticker, period string) (*models.TechnicalSnapshot, error) {
	history, err := s.prices.FetchHistory(ctx, ticker, period, false)
	if err != nil {
		return nil, err
	}
	if len(history.Bars) == 0 {
		return nil, fmt.Errorf("no price data for %s: %w", history.Ticker, models.ErrNotFound)
	}

	snap := Compute(history.Bars)
	snap.Ticker = history.Ticker
	snap.Period = history.Period

	s.logger.Debug().
		Str("ticker", snap.Ticker).
		Str("period", snap.Period).
		Int("bars", snap.Bars).
		Str("trend", snap.Trend).
		Msg("Technicals computed")

	return snap, nil
}

// Compute summarises a non-empty ascending series.
func Compute(bars []models.EODBar) *models.TechnicalSnapshot {
	last := bars[len(bars)-1]
	snap := &models.TechnicalSnapshot{
		AsOf:      last.Date,
		Bars:      len(bars),
		Close:     last.Close,
		SMA20:     optional(SMA(bars, 20)),
		SMA50:     optional(SMA(bars, 50)),
		SMA200:    optional(SMA(bars, 200)),
		RSI14:     optional(RSI(bars, 14)),
		ATR14:     optional(ATR(bars, 14)),
		Crossover: Crossover(bars, 20, 50),
	}

	if len(bars) > 1 {
		prev := bars[len(bars)-2].Close
		change := last.Close - prev
		snap.Change = &change
		if prev != 0 {
			pct := change / prev * 100
			snap.ChangePct = &pct
		}
	}

	if snap.RSI14 != nil {
		snap.RSIState = ClassifyRSI(*snap.RSI14)
	}
	if ratio, ok := VolumeRatio(bars, 20); ok {
		snap.VolumeRatio = &ratio
		snap.VolumeState = ClassifyVolume(ratio)
	}

	snap.PeriodHigh, snap.PeriodLow = Range(bars)
	snap.Support, snap.Resistance = SupportResistance(bars, supportLookback)
	snap.Trend = Trend(last.Close, snap.SMA20, snap.SMA50, snap.SMA200)

	return snap
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
