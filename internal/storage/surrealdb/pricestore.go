package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/models"
)

type barRecord struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// PriceStore persists daily bars in the ohlcv table, one record per (ticker, date).
type PriceStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

func NewPriceStore(db *surrealdb.DB, logger arbor.ILogger) *PriceStore {
	return &PriceStore{db: db, logger: logger}
}

func (s *PriceStore) storedDates(ctx context.Context, ticker string) (map[string]bool, error) {
	type dateRow struct {
		Date string `json:"date"`
	}
	results, err := surrealdb.Query[[]dateRow](ctx, s.db,
		"SELECT date FROM ohlcv WHERE ticker = $ticker", map[string]any{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("failed to query stored dates: %w", err)
	}
	dates := make(map[string]bool)
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			dates[row.Date] = true
		}
	}
	return dates, nil
}

func (s *PriceStore) UpsertBars(ctx context.Context, ticker string, bars []models.EODBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	stored, err := s.storedDates(ctx, ticker)
	if err != nil {
		return 0, err
	}

	var records []map[string]any
	for _, b := range bars {
		day := b.Date.Format("2006-01-02")
		if stored[day] {
			continue
		}
		stored[day] = true
		records = append(records, map[string]any{
			"id":     surrealmodels.NewRecordID(ohlcvTable, ticker+"_"+day),
			"ticker": ticker,
			"date":   day,
			"open":   b.Open,
			"high":   b.High,
			"low":    b.Low,
			"close":  b.Close,
			"volume": b.Volume,
		})
	}

	if len(records) == 0 {
		return 0, nil
	}

	// ids created by a concurrent writer since the pre-filter are skipped
	results, err := surrealdb.Query[[]barRecord](ctx, s.db, "INSERT IGNORE INTO ohlcv $records", map[string]any{"records": records})
	if err != nil {
		return 0, fmt.Errorf("failed to insert bars: %w", err)
	}
	inserted := len(records)
	if results != nil && len(*results) > 0 {
		inserted = len((*results)[0].Result)
	}

	s.logger.Debug().Str("ticker", ticker).Int("inserted", inserted).Int("offered", len(bars)).Msg("OHLCV bars committed")
	return inserted, nil
}

func (s *PriceStore) GetBars(ctx context.Context, ticker string) ([]models.EODBar, error) {
	results, err := surrealdb.Query[[]barRecord](ctx, s.db,
		"SELECT * FROM ohlcv WHERE ticker = $ticker ORDER BY date ASC", map[string]any{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}

	var bars []models.EODBar
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			date, err := time.Parse("2006-01-02", r.Date)
			if err != nil {
				s.logger.Warn().Str("ticker", ticker).Str("date", r.Date).Msg("Skipping stored bar with unparseable date")
				continue
			}
			bars = append(bars, models.EODBar{
				Date:   date,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			})
		}
	}
	return bars, nil
}
