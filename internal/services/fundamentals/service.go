// Package fundamentals ingests yearly financial statements into the statement store.
package fundamentals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ratios"
)

// Service implements FundamentalsService
type Service struct {
	eodhd   interfaces.EODHDClient
	storage interfaces.StorageManager
	logger  arbor.ILogger
	now     func() time.Time
}

var _ interfaces.FundamentalsService = (*Service)(nil)

// NewService creates a new fundamentals service
func NewService(eodhd interfaces.EODHDClient, storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		eodhd:   eodhd,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchAndStore pulls every yearly statement for a ticker and inserts the
// (type, period) pairs not already stored. Re-running is a no-op.
func (s *Service) FetchAndStore(ctx context.Context, ticker string) (*models.IngestResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	raw, err := s.eodhd.GetFinancialStatements(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statements for %s: %w", ticker, err)
	}
	if len(raw) == 0 {
		s.logger.Warn().Str("ticker", ticker).Msg("Provider returned no financial statements")
	}

	store := s.storage.StatementStore()
	existing, err := store.ExistingKeys(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored statements for %s: %w", ticker, err)
	}

	createdAt := s.now().UTC()
	var fresh []*models.FinancialStatement
	for _, r := range raw {
		key := models.NewStatementKey(r.Type, r.Period)
		if existing[key] {
			continue
		}
		existing[key] = true

		items := Normalize(r.Items)
		version := ratios.Classify(items)
		s.diagnose(ticker, r, items, version)

		fresh = append(fresh, &models.FinancialStatement{
			Ticker:        ticker,
			StatementType: r.Type,
			Period:        r.Period,
			Data:          items,
			SchemaVersion: version,
			CreatedAt:     createdAt,
		})
	}

	created := 0
	if len(fresh) > 0 {
		created, err = store.InsertStatements(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("failed to store statements for %s: %w", ticker, err)
		}
	}

	result := &models.IngestResult{
		Ticker:     ticker,
		NewRecords: created,
		Skipped:    len(raw) - created,
		Message:    fmt.Sprintf("Successfully fetched and stored %d statements for %s", created, ticker),
	}

	s.logger.Info().
		Str("ticker", ticker).
		Int("fetched", len(raw)).
		Int("new_records", created).
		Int("skipped", result.Skipped).
		Msg("Financial statements ingested")

	return result, nil
}

// diagnose logs payloads the schema table cannot fully map.
func (s *Service) diagnose(ticker string, r models.RawStatement, items models.LineItems, version string) {
	period := r.Period.Format("2006-01-02")
	if version == ratios.SchemaUnknown {
		s.logger.Warn().
			Str("ticker", ticker).
			Str("statement_type", string(r.Type)).
			Str("period", period).
			Int("fields", len(items)).
			Msg("Statement does not match any known line-item schema")
		return
	}

	missing := ratios.Unmapped(items, version, r.Type)
	if len(missing) == 0 {
		return
	}
	names := make([]string, len(missing))
	for i, m := range missing {
		names[i] = string(m)
	}
	s.logger.Warn().
		Str("ticker", ticker).
		Str("statement_type", string(r.Type)).
		Str("period", period).
		Str("schema", version).
		Strs("unmapped", names).
		Msg("Statement is missing canonical line items")
}
