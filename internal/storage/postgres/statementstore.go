package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/models"
)

// StatementStore persists financial statements in financial_statements.
type StatementStore struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func NewStatementStore(pool *pgxpool.Pool, logger arbor.ILogger) *StatementStore {
	return &StatementStore{pool: pool, logger: logger}
}

func (s *StatementStore) ExistingKeys(ctx context.Context, ticker string) (map[models.StatementKey]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT statement_type, period FROM financial_statements WHERE ticker = $1`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[models.StatementKey]bool)
	for rows.Next() {
		var statementType string
		var period time.Time
		if err := rows.Scan(&statementType, &period); err != nil {
			return nil, fmt.Errorf("failed to scan statement key: %w", err)
		}
		keys[models.NewStatementKey(models.StatementType(statementType), period)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statement keys: %w", err)
	}
	return keys, nil
}

func (s *StatementStore) InsertStatements(ctx context.Context, statements []*models.FinancialStatement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	inserted := 0
	for _, st := range statements {
		data, err := json.Marshal(st.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to encode statement data: %w", err)
		}
		createdAt := st.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO financial_statements (ticker, statement_type, period, data, schema_version, created_at)
			 VALUES ($1, $2, $3, $4::jsonb, $5, $6)
			 ON CONFLICT ON CONSTRAINT _ticker_statement_period_uc DO NOTHING`,
			st.Ticker, string(st.StatementType), st.Period, string(data), st.SchemaVersion, createdAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert statement %s/%s/%s: %w",
				st.Ticker, st.StatementType, st.Period.Format("2006-01-02"), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if inserted == 0 {
		return 0, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit statements: %w", err)
	}

	s.logger.Debug().Int("inserted", inserted).Int("offered", len(statements)).Msg("Statements committed")
	return inserted, nil
}

func (s *StatementStore) LatestStatement(ctx context.Context, ticker string, statementType models.StatementType) (*models.FinancialStatement, error) {
	var (
		st   models.FinancialStatement
		kind string
		data []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT ticker, statement_type, period, data, schema_version, created_at
		   FROM financial_statements
		  WHERE ticker = $1 AND statement_type = $2
		  ORDER BY period DESC
		  LIMIT 1`,
		ticker, string(statementType)).
		Scan(&st.Ticker, &kind, &st.Period, &data, &st.SchemaVersion, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select latest %s: %w", statementType, err)
	}

	st.StatementType = models.StatementType(kind)
	if err := json.Unmarshal(data, &st.Data); err != nil {
		return nil, fmt.Errorf("failed to decode statement data: %w", err)
	}
	return &st, nil
}
