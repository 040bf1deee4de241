package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/earnings"
	"github.com/bobmcallan/tally/internal/services/prices"
)

// handleFetchStatements handles POST /api/v1/data/fetch/{ticker}.
func (s *Server) handleFetchStatements(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}

	result, err := s.app.FundamentalsService.FetchAndStore(r.Context(), ticker)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Statement fetch failed")
		WriteMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     result.Message,
		"new_records": result.NewRecords,
	})
}

// handleOHLCV handles GET /api/v1/data/ohlcv/{ticker}?period=1y&persist=false.
// Any failure, including an unknown period, is reported as 404.
func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	persist := false
	if v := r.URL.Query().Get("persist"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid persist value %q", v))
			return
		}
		persist = b
	}

	history, err := s.app.PriceService.FetchHistory(r.Context(), ticker, period, persist)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Str("period", period).Msg("OHLCV lookup failed")
		WriteDetail(w, http.StatusNotFound, fmt.Sprintf("Data not found for ticker %s: %v", ticker, err))
		return
	}

	WriteJSON(w, http.StatusOK, models.OHLCVByDate(history.Bars))
}

// handleOHLCVChart handles GET /api/v1/data/ohlcv/{ticker}/chart?period=1y.
func (s *Server) handleOHLCVChart(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}
	period := r.URL.Query().Get("period")

	history, err := s.app.PriceService.FetchHistory(r.Context(), ticker, period, false)
	if err != nil {
		WriteDetail(w, http.StatusNotFound, fmt.Sprintf("Data not found for ticker %s: %v", ticker, err))
		return
	}

	png, err := prices.RenderCloseChart(ticker, history.Bars)
	if err != nil {
		WriteDetail(w, http.StatusNotFound, fmt.Sprintf("Chart unavailable for ticker %s: %v", ticker, err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleStoredOHLCV handles GET /api/v1/data/ohlcv/{ticker}/stored.
// Returns the persisted bars only; no provider call is made.
func (s *Server) handleStoredOHLCV(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}

	bars, err := s.app.PriceService.StoredHistory(r.Context(), ticker)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Stored OHLCV lookup failed")
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(bars) == 0 {
		WriteDetail(w, http.StatusNotFound, fmt.Sprintf("No stored data for ticker %s", ticker))
		return
	}

	WriteJSON(w, http.StatusOK, models.OHLCVByDate(bars))
}

// handleEarnings handles GET /api/v1/data/earnings/{ticker}?horizon=3month.
// Provider and configuration problems map to 429 with the {error} payload.
func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}
	horizon := r.URL.Query().Get("horizon")

	calendar, err := s.app.EarningsService.Upcoming(r.Context(), ticker, horizon)
	if err != nil {
		if errors.Is(err, earnings.ErrInvalidHorizon) {
			WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Earnings lookup failed")
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	if calendar.IsError() {
		WriteJSON(w, http.StatusTooManyRequests, calendar)
		return
	}

	WriteJSON(w, http.StatusOK, calendar)
}

// handleRatios handles GET /api/v1/analysis/ratios/{ticker}.
// Domain errors such as missing statements are returned as 200 {error}.
func (s *Server) handleRatios(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.RatioService.Calculate(r.Context(), ticker))
}

// handleTechnicals handles GET /api/v1/analysis/technicals/{ticker}?period=1y.
func (s *Server) handleTechnicals(w http.ResponseWriter, r *http.Request) {
	ticker, ok := TickerParam(w, r)
	if !ok {
		return
	}
	period := r.URL.Query().Get("period")

	snap, err := s.app.TechnicalsService.Snapshot(r.Context(), ticker, period)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Str("period", period).Msg("Technicals lookup failed")
		WriteDetail(w, http.StatusNotFound, fmt.Sprintf("Data not found for ticker %s: %v", ticker, err))
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

// handleAnalyze handles POST /api/v1/analysis/analyze with body {ticker, query?}.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	ticker, err := common.NormalizeTicker(req.Ticker)
	if err != nil {
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.app.Agent == nil {
		WriteDetail(w, http.StatusServiceUnavailable, "Analysis agent is not configured")
		return
	}

	result, err := s.app.Agent.Analyze(r.Context(), ticker, req.Query)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Agent analysis failed")
		WriteDetail(w, http.StatusInternalServerError, fmt.Sprintf("Failed to run analysis: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
