package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/clients/alphavantage"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

type testEnv struct {
	server   *Server
	storage  *tcommon.MemoryStorage
	eodhd    *tcommon.MockEODHDClient
	earnings *tcommon.MockEarningsClient
	llm      *tcommon.MockCompletionClient
}

// newTestEnv builds a server over in-memory storage and mock providers.
// withAgent controls whether an LLM backend is configured.
func newTestEnv(t *testing.T, withAgent bool) *testEnv {
	t.Helper()
	env := &testEnv{
		storage:  tcommon.NewMemoryStorage(),
		eodhd:    &tcommon.MockEODHDClient{MarketCap: 60},
		earnings: &tcommon.MockEarningsClient{},
	}
	deps := app.Dependencies{
		Storage:        env.storage,
		EODHDClient:    env.eodhd,
		EarningsClient: env.earnings,
	}
	if withAgent {
		env.llm = &tcommon.MockCompletionClient{}
		deps.LLM = env.llm
	}
	a := app.New(common.NewDefaultConfig(), common.NewSilentLogger(), deps)
	t.Cleanup(a.Close)
	env.server = NewServer(a)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleBars() []models.EODBar {
	return []models.EODBar{
		{Date: day(2024, 1, 2), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Date: day(2024, 1, 3), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 1500},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/health", "/api/health"} {
		rr := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/version", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, common.GetVersion(), body["version"])
	assert.Contains(t, body, "build")
	assert.Contains(t, body, "commit")
}

func TestConfig_ReportsAgentState(t *testing.T) {
	env := newTestEnv(t, false)

	body := decodeBody(t, env.do(http.MethodGet, "/api/config", ""))

	assert.Equal(t, "postgres", body["storage_backend"])
	assert.Equal(t, false, body["agent_configured"])
}

func TestDiagnostics_StorageStatus(t *testing.T) {
	env := newTestEnv(t, false)
	env.storage.PingErr = errors.New("connection refused")

	body := decodeBody(t, env.do(http.MethodGet, "/api/diagnostics", ""))

	assert.Equal(t, "connection refused", body["storage"])
	assert.Contains(t, body, "uptime")
}

func TestFetchStatements_Created(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Statements = []models.RawStatement{
		{Type: models.IncomeStatement, Period: day(2023, 12, 31), Items: map[string]any{"netIncome": 10.0}},
		{Type: models.BalanceSheet, Period: day(2023, 12, 31), Items: map[string]any{"totalAssets": 200.0}},
	}

	rr := env.do(http.MethodPost, "/api/v1/data/fetch/acme", "")

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"message":"Successfully fetched and stored 2 statements for ACME","new_records":2}`, rr.Body.String())

	// re-running is a no-op
	rr = env.do(http.MethodPost, "/api/v1/data/fetch/ACME", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, float64(0), decodeBody(t, rr)["new_records"])
	assert.Equal(t, 1, env.storage.Statements.Commits)
}

func TestFetchStatements_ProviderFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Err = errors.New("upstream timeout")

	rr := env.do(http.MethodPost, "/api/v1/data/fetch/ACME", "")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["message"], "upstream timeout")
}

func TestFetchStatements_WrongMethod(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/data/fetch/ACME", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFetchStatements_InvalidTicker(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodPost, "/api/v1/data/fetch/$$$", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr), "detail")
}

func TestOHLCV_DateKeyed(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Bars = sampleBars()

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME?period=1mo", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"2024-01-02": {"open":10,"high":11,"low":9,"close":10.5,"volume":1000},
		"2024-01-03": {"open":10.5,"high":12,"low":10,"close":11.5,"volume":1500}
	}`, rr.Body.String())

	bars, err := env.storage.Prices.GetBars(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Empty(t, bars, "nothing persisted without persist=true")
}

func TestOHLCV_Persist(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Bars = sampleBars()

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME?persist=true", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME/stored", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr), 2)
}

func TestOHLCV_InvalidPeriodIsNotFound(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME?period=7w", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["detail"], "Data not found for ticker ACME")
}

func TestOHLCV_ProviderFailureIsNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Err = errors.New("unknown symbol")

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/NOPE", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["detail"], "unknown symbol")
}

func TestOHLCV_InvalidPersist(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME?persist=maybe", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOHLCV_StoredEmpty(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME/stored", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOHLCVChart(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Bars = sampleBars()

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME/chart?period=1mo", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "\x89PNG"))
}

func TestOHLCVChart_TooFewBars(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Bars = sampleBars()[:1]

	rr := env.do(http.MethodGet, "/api/v1/data/ohlcv/ACME/chart", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEarnings(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		events     []models.EarningsEvent
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:  "events for ticker only",
			query: "",
			events: []models.EarningsEvent{
				{"symbol": "ACME", "reportDate": "2025-01-30"},
				{"symbol": "OTHER", "reportDate": "2025-02-01"},
			},
			wantStatus: http.StatusOK,
			wantBody:   `[{"symbol":"ACME","reportDate":"2025-01-30"}]`,
		},
		{
			name:       "no events is informational",
			query:      "?horizon=6month",
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"No upcoming earnings found for ACME in the 6month horizon."}`,
		},
		{
			name:       "provider error",
			err:        &alphavantage.ProviderError{Kind: alphavantage.KindRateLimited, Message: "rate limit reached"},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"rate limit reached"}`,
		},
		{
			name:       "missing key",
			err:        alphavantage.ErrMissingAPIKey,
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"Alpha Vantage API key is not configured"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.earnings.Events = tt.events
			env.earnings.Err = tt.err

			rr := env.do(http.MethodGet, "/api/v1/data/earnings/acme"+tt.query, "")

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestEarnings_InvalidHorizon(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/data/earnings/ACME?horizon=2year", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEarnings_TransportFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.earnings.Err = errors.New("connection reset")

	rr := env.do(http.MethodGet, "/api/v1/data/earnings/ACME", "")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["detail"], "connection reset")
}

func TestRatios_NotFoundIsOK(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/analysis/ratios/ACME", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"error":"Financial data not found for ACME. Please fetch it first."}`, rr.Body.String())
}

func TestTechnicals(t *testing.T) {
	env := newTestEnv(t, false)
	env.eodhd.Bars = sampleBars()

	rr := env.do(http.MethodGet, "/api/v1/analysis/technicals/acme?period=1mo", "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ACME", body["ticker"])
	assert.Equal(t, "1mo", body["period"])
	assert.Equal(t, 11.5, body["close"])
	assert.Equal(t, 1.0, body["change"])
	assert.Nil(t, body["sma_20"])
	assert.Equal(t, "neutral", body["trend"])
}

func TestTechnicals_NoDataIsNotFound(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v1/analysis/technicals/ACME", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["detail"], "Data not found for ticker ACME")
}

func TestAnalyze_ParsedOutput(t *testing.T) {
	env := newTestEnv(t, true)
	env.llm.Responses = []string{
		"Thought: I need the ratios\nAction: financial_analyzer_tool\nAction Input: ACME",
		"Thought: I now know the final answer\nFinal Answer: {\"summary\": \"no data\"}",
	}

	rr := env.do(http.MethodPost, "/api/v1/analysis/analyze", `{"ticker":"acme"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"summary":"no data"}`, rr.Body.String())
	require.Len(t, env.llm.Prompts, 2)
	assert.Contains(t, env.llm.Prompts[0], "Analyze the company with ticker ACME. Run a full financial analysis.")
	assert.Contains(t, env.llm.Prompts[1], "Financial data not found for ACME")
}

func TestAnalyze_NonJSONAnswer(t *testing.T) {
	env := newTestEnv(t, true)
	env.llm.Responses = []string{"Final Answer: The company looks fine."}

	rr := env.do(http.MethodPost, "/api/v1/analysis/analyze", `{"ticker":"ACME","query":"Is it healthy?"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Agent finished with a non-JSON response.","output":"The company looks fine."}`, rr.Body.String())
	assert.Contains(t, env.llm.Prompts[0], "Analyze the company with ticker ACME. Is it healthy?")
}

func TestAnalyze_LLMFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.llm.Err = errors.New("model overloaded")

	rr := env.do(http.MethodPost, "/api/v1/analysis/analyze", `{"ticker":"ACME"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["detail"], "Failed to run analysis:")
}

func TestAnalyze_InvalidBody(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"ticker":`},
		{"missing ticker", `{"query":"hello"}`},
		{"invalid ticker", `{"ticker":"not a ticker"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/api/v1/analysis/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decodeBody(t, rr), "detail")
		})
	}
	assert.Empty(t, env.llm.Prompts)
}

func TestAnalyze_NoAgentConfigured(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodPost, "/api/v1/analysis/analyze", `{"ticker":"ACME"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/v2/nothing", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rr.Body.String())
}

func TestMCPEndpoint_Initialize(t *testing.T) {
	env := newTestEnv(t, false)

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"tally"`)
}
