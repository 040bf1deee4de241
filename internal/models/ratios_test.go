package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioReport_MarshalJSON_Values(t *testing.T) {
	pe := 12.0
	report := &RatioReport{PERatio: &pe}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, 12.0, got["p_e_ratio"])
	// undefined ratios are present as null
	v, ok := got["altman_z_score"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.NotContains(t, got, "error")
	assert.NotContains(t, got, "warnings")
}

func TestRatioReport_MarshalJSON_Error(t *testing.T) {
	data, err := json.Marshal(NewRatioError("Financial data not found for AAPL. Please fetch it first."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Financial data not found for AAPL. Please fetch it first."}`, string(data))
}

func TestEarningsCalendar_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		cal  EarningsCalendar
		want string
	}{
		{"error", EarningsCalendar{Error: "no key"}, `{"error":"no key"}`},
		{"message", EarningsCalendar{Message: "none"}, `{"message":"none"}`},
		{"empty events", EarningsCalendar{}, `[]`},
		{"events", EarningsCalendar{Events: []EarningsEvent{{"symbol": "AAPL"}}}, `[{"symbol":"AAPL"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cal)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestOHLCVByDate(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	rows := OHLCVByDate([]EODBar{
		{Date: d1, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: d2, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, OHLCVRow{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}, rows["2024-01-02"])
	assert.Equal(t, int64(200), rows["2024-01-03"].Volume)
}

func TestStatementKey(t *testing.T) {
	period := time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC)
	s := &FinancialStatement{StatementType: BalanceSheet, Period: period}
	assert.Equal(t, StatementKey{Type: BalanceSheet, Period: "2023-09-30"}, s.Key())
	assert.True(t, BalanceSheet.Valid())
	assert.False(t, StatementType("ledger").Valid())
}
