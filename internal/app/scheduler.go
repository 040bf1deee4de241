package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// refreshPeriod is the price window pulled on each scheduled run. Bars already
// stored are skipped, so overlapping windows are harmless.
const refreshPeriod = "1mo"

// Scheduler refreshes statements and prices for a fixed ticker list on a cron schedule.
type Scheduler struct {
	fundamentals interfaces.FundamentalsService
	prices       interfaces.PriceService
	config       common.SchedulerConfig
	cron         *cron.Cron
	logger       arbor.ILogger

	// running guards against overlapping runs when one outlasts the schedule
	running sync.Mutex
}

// NewScheduler creates a refresh scheduler
func NewScheduler(fundamentals interfaces.FundamentalsService, prices interfaces.PriceService, config common.SchedulerConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		fundamentals: fundamentals,
		prices:       prices,
		config:       config,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start registers the refresh job and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.Schedule, s.runScheduled); err != nil {
		return fmt.Errorf("invalid scheduler.schedule %q: %w", s.config.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("tickers", len(s.config.Tickers)).
		Msg("Refresh scheduler started")

	return nil
}

// Stop stops the cron loop and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Refresh scheduler stopped")
}

func (s *Scheduler) runScheduled() {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("Refresh skipped: previous run still in progress")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GetTimeout())
	defer cancel()

	s.Refresh(ctx)
}

// RefreshStats summarises one refresh run.
type RefreshStats struct {
	Tickers    int
	Statements int
	Bars       int
	Errors     int
}

// Refresh ingests statements and then recent prices for every configured ticker.
// A failure on one ticker is logged and does not stop the others.
func (s *Scheduler) Refresh(ctx context.Context) RefreshStats {
	start := time.Now()
	stats := RefreshStats{}

	for _, raw := range s.config.Tickers {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("Refresh interrupted")
			break
		}

		ticker, err := common.NormalizeTicker(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", raw).Msg("Refresh: skipping invalid ticker")
			stats.Errors++
			continue
		}
		stats.Tickers++

		result, err := s.fundamentals.FetchAndStore(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Refresh: statement ingest failed")
			stats.Errors++
		} else {
			stats.Statements += result.NewRecords
		}

		history, err := s.prices.FetchHistory(ctx, ticker, refreshPeriod, true)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Refresh: price fetch failed")
			stats.Errors++
			continue
		}
		stats.Bars += history.NewRows
	}

	s.logger.Info().
		Int("tickers", stats.Tickers).
		Int("statements", stats.Statements).
		Int("bars", stats.Bars).
		Int("errors", stats.Errors).
		Str("duration", time.Since(start).String()).
		Str("tickers_list", strings.Join(s.config.Tickers, ",")).
		Msg("Refresh complete")

	return stats
}
