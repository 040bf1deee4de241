package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

// testManager connects to the shared container. Tests isolate themselves by ticker.
func testManager(t *testing.T) *Manager {
	t.Helper()
	pg := tcommon.StartPostgres(t)

	m, err := NewManagerFromURL(context.Background(), common.NewSilentLogger(), pg.DatabaseURL(), 4)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func uniqueTicker() string {
	return "T" + strings.ToUpper(uuid.NewString()[:8])
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestStatementStore_InsertAndExistingKeys(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	ticker := uniqueTicker()
	store := m.StatementStore()

	keys, err := store.ExistingKeys(ctx, ticker)
	require.NoError(t, err)
	assert.Empty(t, keys)

	statements := []*models.FinancialStatement{
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2023-12-31"), Data: models.LineItems{"Net Income": 100}, SchemaVersion: "yfinance-display"},
		{Ticker: ticker, StatementType: models.BalanceSheet, Period: date("2023-12-31"), Data: models.LineItems{"Total Assets": 1000}, SchemaVersion: "yfinance-display"},
	}
	n, err := store.InsertStatements(ctx, statements)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err = store.ExistingKeys(ctx, ticker)
	require.NoError(t, err)
	assert.True(t, keys[models.StatementKey{Type: models.IncomeStatement, Period: "2023-12-31"}])
	assert.True(t, keys[models.StatementKey{Type: models.BalanceSheet, Period: "2023-12-31"}])
	assert.Len(t, keys, 2)

	// Re-inserting the same identities creates nothing
	n, err = store.InsertStatements(ctx, statements)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStatementStore_InsertOnlyKeepsOriginalData(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	ticker := uniqueTicker()
	store := m.StatementStore()

	_, err := store.InsertStatements(ctx, []*models.FinancialStatement{
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2022-12-31"), Data: models.LineItems{"Net Income": 1}},
	})
	require.NoError(t, err)

	_, err = store.InsertStatements(ctx, []*models.FinancialStatement{
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2022-12-31"), Data: models.LineItems{"Net Income": 2}},
	})
	require.NoError(t, err)

	got, err := store.LatestStatement(ctx, ticker, models.IncomeStatement)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Data["Net Income"])
}

func TestStatementStore_LatestStatement(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	ticker := uniqueTicker()
	store := m.StatementStore()

	_, err := store.LatestStatement(ctx, ticker, models.IncomeStatement)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = store.InsertStatements(ctx, []*models.FinancialStatement{
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2021-12-31"), Data: models.LineItems{"Net Income": 10}, SchemaVersion: "eodhd"},
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2023-12-31"), Data: models.LineItems{"Net Income": 30}, SchemaVersion: "eodhd"},
		{Ticker: ticker, StatementType: models.IncomeStatement, Period: date("2022-12-31"), Data: models.LineItems{"Net Income": 20}, SchemaVersion: "eodhd"},
	})
	require.NoError(t, err)

	got, err := store.LatestStatement(ctx, ticker, models.IncomeStatement)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", got.Period.Format("2006-01-02"))
	assert.Equal(t, 30.0, got.Data["Net Income"])
	assert.Equal(t, "eodhd", got.SchemaVersion)
	assert.Equal(t, models.IncomeStatement, got.StatementType)

	_, err = store.LatestStatement(ctx, ticker, models.CashFlow)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPriceStore_UpsertBarsSkipsExistingDates(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	ticker := uniqueTicker()
	store := m.PriceStore()

	bars := []models.EODBar{
		{Date: date("2024-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: date("2024-01-03"), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}
	n, err := store.UpsertBars(ctx, ticker, bars)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	changed := []models.EODBar{
		{Date: date("2024-01-03"), Open: 9, High: 9, Low: 9, Close: 9, Volume: 9},
		{Date: date("2024-01-04"), Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 300},
	}
	n, err = store.UpsertBars(ctx, ticker, changed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetBars(ctx, ticker)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-02", got[0].Date.Format("2006-01-02"))
	assert.Equal(t, 2.0, got[1].Close, "existing rows are never overwritten")
	assert.Equal(t, int64(300), got[2].Volume)
}

func TestPriceStore_UpsertBarsRollsBackOnError(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	ticker := uniqueTicker()
	store := m.PriceStore()

	bars := []models.EODBar{
		{Date: date("2024-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: date("2024-01-03"), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: -1},
	}
	_, err := store.UpsertBars(ctx, ticker, bars)
	require.Error(t, err)

	got, err := store.GetBars(ctx, ticker)
	require.NoError(t, err)
	assert.Empty(t, got, "a failed batch leaves no rows behind")
}

func TestManager_Ping(t *testing.T) {
	m := testManager(t)
	assert.NoError(t, m.Ping(context.Background()))
}
