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

// statementRecord is the stored shape. Dates are ISO strings so ordering is lexical.
type statementRecord struct {
	Ticker        string             `json:"ticker"`
	StatementType string             `json:"statement_type"`
	Period        string             `json:"period"`
	Data          map[string]float64 `json:"data"`
	SchemaVersion string             `json:"schema_version"`
	CreatedAt     string             `json:"created_at"`
}

func (r statementRecord) toModel() *models.FinancialStatement {
	period, _ := time.Parse("2006-01-02", r.Period)
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return &models.FinancialStatement{
		Ticker:        r.Ticker,
		StatementType: models.StatementType(r.StatementType),
		Period:        period,
		Data:          models.LineItems(r.Data),
		SchemaVersion: r.SchemaVersion,
		CreatedAt:     created,
	}
}

// statementID is the natural key (ticker, type, period) as a record id.
func statementID(ticker string, t models.StatementType, period string) string {
	return ticker + "_" + string(t) + "_" + period
}

// StatementStore persists financial statements in the financial_statement table.
type StatementStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

func NewStatementStore(db *surrealdb.DB, logger arbor.ILogger) *StatementStore {
	return &StatementStore{db: db, logger: logger}
}

func (s *StatementStore) ExistingKeys(ctx context.Context, ticker string) (map[models.StatementKey]bool, error) {
	type keyRow struct {
		StatementType string `json:"statement_type"`
		Period        string `json:"period"`
	}

	sql := "SELECT statement_type, period FROM financial_statement WHERE ticker = $ticker"
	results, err := surrealdb.Query[[]keyRow](ctx, s.db, sql, map[string]any{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("failed to query statement keys: %w", err)
	}

	keys := make(map[models.StatementKey]bool)
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			keys[models.StatementKey{Type: models.StatementType(row.StatementType), Period: row.Period}] = true
		}
	}
	return keys, nil
}

// InsertStatements writes all new records in a single INSERT IGNORE statement, which
// SurrealDB applies atomically. Records whose identity already exists are dropped first,
// and any created concurrently in between are skipped rather than failing the batch.
func (s *StatementStore) InsertStatements(ctx context.Context, statements []*models.FinancialStatement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}

	byTicker := make(map[string]map[models.StatementKey]bool)
	var records []map[string]any
	now := time.Now().UTC()

	for _, st := range statements {
		existing, ok := byTicker[st.Ticker]
		if !ok {
			var err error
			existing, err = s.ExistingKeys(ctx, st.Ticker)
			if err != nil {
				return 0, err
			}
			byTicker[st.Ticker] = existing
		}

		key := st.Key()
		if existing[key] {
			continue
		}
		existing[key] = true

		createdAt := st.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		records = append(records, map[string]any{
			"id":             surrealmodels.NewRecordID(statementTable, statementID(st.Ticker, st.StatementType, key.Period)),
			"ticker":         st.Ticker,
			"statement_type": string(st.StatementType),
			"period":         key.Period,
			"data":           map[string]float64(st.Data),
			"schema_version": st.SchemaVersion,
			"created_at":     createdAt.Format(time.RFC3339),
		})
	}

	if len(records) == 0 {
		return 0, nil
	}

	sql := "INSERT IGNORE INTO financial_statement $records"
	results, err := surrealdb.Query[[]statementRecord](ctx, s.db, sql, map[string]any{"records": records})
	if err != nil {
		return 0, fmt.Errorf("failed to insert statements: %w", err)
	}
	inserted := len(records)
	if results != nil && len(*results) > 0 {
		inserted = len((*results)[0].Result)
	}

	s.logger.Debug().Int("inserted", inserted).Int("offered", len(statements)).Msg("Statements committed")
	return inserted, nil
}

func (s *StatementStore) LatestStatement(ctx context.Context, ticker string, statementType models.StatementType) (*models.FinancialStatement, error) {
	sql := "SELECT * FROM financial_statement WHERE ticker = $ticker AND statement_type = $type ORDER BY period DESC LIMIT 1"
	vars := map[string]any{"ticker": ticker, "type": string(statementType)}

	results, err := surrealdb.Query[[]statementRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select latest %s: %w", statementType, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, models.ErrNotFound
	}
	return (*results)[0].Result[0].toModel(), nil
}
