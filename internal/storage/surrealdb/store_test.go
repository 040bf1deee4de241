package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

func TestNewManager(t *testing.T) {
	sc := tcommon.StartSurrealDB(t)
	cfg := &common.SurrealDBConfig{
		Address:   sc.Address(),
		Username:  "root",
		Password:  "root",
		Namespace: "tally_test",
		Database:  fmt.Sprintf("mgr_%s_%d", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano()%100000),
	}

	mgr, err := NewManager(context.Background(), testLogger(), cfg)
	require.NoError(t, err)
	defer mgr.Close()

	assert.NotNil(t, mgr.StatementStore())
	assert.NotNil(t, mgr.PriceStore())
	assert.NoError(t, mgr.Ping(context.Background()))
}

func TestStatementStore_InsertSkipsExistingIdentities(t *testing.T) {
	store := testManager(t).StatementStore()
	ctx := context.Background()

	statements := []*models.FinancialStatement{
		{Ticker: "AAPL", StatementType: models.IncomeStatement, Period: date("2023-09-30"), Data: models.LineItems{"netIncome": 96995000000}, SchemaVersion: "eodhd"},
		{Ticker: "AAPL", StatementType: models.BalanceSheet, Period: date("2023-09-30"), Data: models.LineItems{"totalAssets": 352583000000}, SchemaVersion: "eodhd"},
	}

	n, err := store.InsertStatements(ctx, statements)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.InsertStatements(ctx, statements)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	keys, err := store.ExistingKeys(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.True(t, keys[models.StatementKey{Type: models.BalanceSheet, Period: "2023-09-30"}])

	other, err := store.ExistingKeys(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStatementStore_DuplicatesWithinBatch(t *testing.T) {
	store := testManager(t).StatementStore()

	n, err := store.InsertStatements(context.Background(), []*models.FinancialStatement{
		{Ticker: "IBM", StatementType: models.CashFlow, Period: date("2022-12-31"), Data: models.LineItems{"freeCashFlow": 1}},
		{Ticker: "IBM", StatementType: models.CashFlow, Period: date("2022-12-31"), Data: models.LineItems{"freeCashFlow": 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStatementStore_LatestStatement(t *testing.T) {
	store := testManager(t).StatementStore()
	ctx := context.Background()

	_, err := store.LatestStatement(ctx, "AAPL", models.IncomeStatement)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = store.InsertStatements(ctx, []*models.FinancialStatement{
		{Ticker: "AAPL", StatementType: models.IncomeStatement, Period: date("2021-09-30"), Data: models.LineItems{"netIncome": 1}, SchemaVersion: "eodhd"},
		{Ticker: "AAPL", StatementType: models.IncomeStatement, Period: date("2023-09-30"), Data: models.LineItems{"netIncome": 3}, SchemaVersion: "eodhd"},
		{Ticker: "AAPL", StatementType: models.IncomeStatement, Period: date("2022-09-30"), Data: models.LineItems{"netIncome": 2}, SchemaVersion: "eodhd"},
	})
	require.NoError(t, err)

	got, err := store.LatestStatement(ctx, "AAPL", models.IncomeStatement)
	require.NoError(t, err)
	assert.Equal(t, "2023-09-30", got.Period.Format("2006-01-02"))
	assert.InDelta(t, 3.0, got.Data["netIncome"], 1e-9)
	assert.Equal(t, "eodhd", got.SchemaVersion)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPriceStore_UpsertBarsNeverOverwrites(t *testing.T) {
	store := testManager(t).PriceStore()
	ctx := context.Background()

	n, err := store.UpsertBars(ctx, "AAPL", []models.EODBar{
		{Date: date("2024-01-03"), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 200},
		{Date: date("2024-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.UpsertBars(ctx, "AAPL", []models.EODBar{
		{Date: date("2024-01-03"), Open: 9, High: 9, Low: 9, Close: 9, Volume: 9},
		{Date: date("2024-01-04"), Open: 3, High: 4, Low: 2, Close: 3.5, Volume: 300},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bars, err := store.GetBars(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.InDelta(t, 2.5, bars[1].Close, 1e-9)
	assert.Equal(t, int64(300), bars[2].Volume)
}

func TestStatementStore_ConcurrentInsertsAreIdempotent(t *testing.T) {
	store := testManager(t).StatementStore()
	ctx := context.Background()

	statements := []*models.FinancialStatement{
		{Ticker: "ORCL", StatementType: models.IncomeStatement, Period: date("2023-05-31"), Data: models.LineItems{"netIncome": 1}},
		{Ticker: "ORCL", StatementType: models.BalanceSheet, Period: date("2023-05-31"), Data: models.LineItems{"totalAssets": 2}},
	}

	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.InsertStatements(ctx, statements)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	keys, err := store.ExistingKeys(ctx, "ORCL")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestPriceStore_ConcurrentUpsertsAreIdempotent(t *testing.T) {
	store := testManager(t).PriceStore()
	ctx := context.Background()

	bars := []models.EODBar{
		{Date: date("2024-02-01"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: date("2024-02-02"), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}

	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpsertBars(ctx, "NFLX", bars)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	got, err := store.GetBars(ctx, "NFLX")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPriceStore_GetBarsEmpty(t *testing.T) {
	store := testManager(t).PriceStore()
	bars, err := store.GetBars(context.Background(), "NONE")
	require.NoError(t, err)
	assert.Empty(t, bars)
}
