package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/models"
)

// PriceStore persists daily bars in ohlcv_data.
type PriceStore struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func NewPriceStore(pool *pgxpool.Pool, logger arbor.ILogger) *PriceStore {
	return &PriceStore{pool: pool, logger: logger}
}

func (s *PriceStore) UpsertBars(ctx context.Context, ticker string, bars []models.EODBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	inserted := 0
	for _, b := range bars {
		tag, err := tx.Exec(ctx,
			`INSERT INTO ohlcv_data (ticker, date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT ON CONSTRAINT _ticker_date_uc DO NOTHING`,
			ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to insert bar %s/%s: %w", ticker, b.Date.Format("2006-01-02"), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit bars: %w", err)
	}

	s.logger.Debug().Str("ticker", ticker).Int("inserted", inserted).Int("offered", len(bars)).Msg("OHLCV bars committed")
	return inserted, nil
}

func (s *PriceStore) GetBars(ctx context.Context, ticker string) ([]models.EODBar, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, open, high, low, close, volume FROM ohlcv_data WHERE ticker = $1 ORDER BY date ASC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.EODBar
	for rows.Next() {
		var b models.EODBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bars: %w", err)
	}
	return bars, nil
}
