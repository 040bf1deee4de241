package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/common"
)

// registerRoutes sets up all REST API routes and the MCP endpoint on the router.
func (s *Server) registerRoutes(r *mux.Router) {
	// System
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/version", s.handleVersion).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)

	// Financial data
	data := r.PathPrefix("/api/v1/data").Subrouter()
	data.HandleFunc("/fetch/{ticker}", s.handleFetchStatements).Methods(http.MethodPost)
	data.HandleFunc("/ohlcv/{ticker}", s.handleOHLCV).Methods(http.MethodGet)
	data.HandleFunc("/ohlcv/{ticker}/chart", s.handleOHLCVChart).Methods(http.MethodGet)
	data.HandleFunc("/ohlcv/{ticker}/stored", s.handleStoredOHLCV).Methods(http.MethodGet)
	data.HandleFunc("/earnings/{ticker}", s.handleEarnings).Methods(http.MethodGet)

	// Analysis
	analysis := r.PathPrefix("/api/v1/analysis").Subrouter()
	analysis.HandleFunc("/ratios/{ticker}", s.handleRatios).Methods(http.MethodGet)
	analysis.HandleFunc("/technicals/{ticker}", s.handleTechnicals).Methods(http.MethodGet)
	analysis.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	// MCP over Streamable HTTP
	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.app.MCPServer,
		mcpserver.WithStateLess(true),
	))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleConfig reports the effective non-secret configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":        cfg.Environment,
		"storage_backend":    cfg.Storage.Backend,
		"storage_address":    cfg.Storage.Address(),
		"logging_level":      cfg.Logging.Level,
		"agent_provider":     cfg.Agent.Provider,
		"agent_configured":   s.app.Agent != nil,
		"agent_iterations":   cfg.Agent.MaxIterations,
		"scheduler_enabled":  cfg.Scheduler.Enabled,
		"scheduler_schedule": cfg.Scheduler.Schedule,
		"scheduler_tickers":  cfg.Scheduler.Tickers,
	})
}

// handleDiagnostics reports uptime and storage reachability.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	storageStatus := "ok"
	if s.app.Storage == nil {
		storageStatus = "closed"
	} else if err := s.app.Storage.Ping(r.Context()); err != nil {
		storageStatus = err.Error()
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"commit":     common.GetGitCommit(),
		"uptime":     uptime.String(),
		"started_at": s.app.StartupTime,
		"storage":    storageStatus,
	})
}
