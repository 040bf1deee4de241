package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/clients/alphavantage"
	"github.com/bobmcallan/tally/internal/clients/claude"
	"github.com/bobmcallan/tally/internal/clients/eodhd"
	"github.com/bobmcallan/tally/internal/clients/gemini"
	"github.com/bobmcallan/tally/internal/clients/groq"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/services/agent"
	"github.com/bobmcallan/tally/internal/services/earnings"
	"github.com/bobmcallan/tally/internal/services/fundamentals"
	"github.com/bobmcallan/tally/internal/services/prices"
	"github.com/bobmcallan/tally/internal/services/ratios"
	"github.com/bobmcallan/tally/internal/services/technicals"
	"github.com/bobmcallan/tally/internal/storage"
)

// App holds all initialized services, clients, and the MCP server.
type App struct {
	Config              *common.Config
	Logger              arbor.ILogger
	Storage             interfaces.StorageManager
	EODHDClient         interfaces.EODHDClient
	EarningsClient      interfaces.EarningsCalendarClient
	FundamentalsService interfaces.FundamentalsService
	PriceService        interfaces.PriceService
	RatioService        interfaces.RatioService
	TechnicalsService   interfaces.TechnicalsService
	EarningsService     interfaces.EarningsService
	// Agent is nil when no completion backend could be configured
	Agent       interfaces.AnalysisAgent
	MCPServer   *server.MCPServer
	StartupTime time.Time

	scheduler *Scheduler
}

// Dependencies are the external collaborators an App is assembled from.
type Dependencies struct {
	Storage        interfaces.StorageManager
	EODHDClient    interfaces.EODHDClient
	EarningsClient interfaces.EarningsCalendarClient
	LLM            interfaces.CompletionClient
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, TALLY_CONFIG,
// tally.toml next to the binary, then config/tally.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration, connects storage and builds every client and service.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()
	configPath = resolveConfigPath(configPath, binDir)

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storageManager, err := storage.NewManager(ctx, logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eodhdKey, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Warn().Msg("EODHD API key not configured - statement and price fetches will fail")
	}

	alphaKey, err := common.ResolveAPIKey("alpha_vantage_api_key", config.Clients.AlphaVantage.APIKey)
	if err != nil {
		logger.Warn().Msg("Alpha Vantage API key not configured - earnings lookups will report a configuration error")
	}

	eodhdClient := eodhd.NewClient(eodhdKey,
		eodhd.WithLogger(logger),
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		eodhd.WithDefaultExchange(config.Clients.EODHD.DefaultExchange),
	)

	earningsClient := alphavantage.NewClient(alphaKey,
		alphavantage.WithLogger(logger),
		alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL),
		alphavantage.WithRateLimit(config.Clients.AlphaVantage.RateLimit),
		alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
	)

	llm, err := newCompletionClient(ctx, config, logger)
	if err != nil {
		logger.Warn().Err(err).Str("provider", config.Agent.Provider).Msg("Agent backend not configured - analysis will be unavailable")
	}

	a := New(config, logger, Dependencies{
		Storage:        storageManager,
		EODHDClient:    eodhdClient,
		EarningsClient: earningsClient,
		LLM:            llm,
	})
	a.StartupTime = startupStart

	logger.Info().Str("startup", time.Since(startupStart).String()).Msg("App initialized")

	return a, nil
}

// New assembles the services and MCP server from already constructed dependencies.
// A nil LLM leaves the Agent unset.
func New(config *common.Config, logger arbor.ILogger, deps Dependencies) *App {
	ratioService := ratios.NewService(deps.Storage, deps.EODHDClient, logger)
	priceService := prices.NewService(deps.EODHDClient, deps.Storage, logger)

	a := &App{
		Config:              config,
		Logger:              logger,
		Storage:             deps.Storage,
		EODHDClient:         deps.EODHDClient,
		EarningsClient:      deps.EarningsClient,
		FundamentalsService: fundamentals.NewService(deps.EODHDClient, deps.Storage, logger),
		PriceService:        priceService,
		RatioService:        ratioService,
		TechnicalsService:   technicals.NewService(priceService, logger),
		EarningsService:     earnings.NewService(deps.EarningsClient, logger),
		StartupTime:         time.Now(),
	}

	if deps.LLM != nil {
		a.Agent = agent.New(deps.LLM,
			[]agent.Tool{agent.NewFinancialAnalyzerTool(ratioService)},
			agent.WithMaxIterations(config.Agent.MaxIterations),
			agent.WithTimeout(config.Agent.GetTimeout()),
			agent.WithLogger(logger),
		)
	}

	a.MCPServer = server.NewMCPServer(
		"tally",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	a.registerTools()

	return a
}

// newCompletionClient builds the completion backend selected by agent.provider.
func newCompletionClient(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.CompletionClient, error) {
	temperature := config.Agent.Temperature

	switch config.Agent.Provider {
	case common.ProviderGroq, "":
		key, err := common.ResolveAPIKey("groq_api_key", config.Clients.Groq.APIKey)
		if err != nil {
			return nil, err
		}
		cfg := config.Clients.Groq
		return groq.NewClient(key,
			groq.WithBaseURL(cfg.BaseURL),
			groq.WithModel(cfg.Model),
			groq.WithTemperature(temperature),
			groq.WithRateLimit(cfg.RateLimit),
			groq.WithTimeout(cfg.GetTimeout()),
			groq.WithLogger(logger),
		), nil

	case common.ProviderOpenAI:
		key, err := common.ResolveAPIKey("openai_api_key", config.Clients.OpenAI.APIKey)
		if err != nil {
			return nil, err
		}
		cfg := config.Clients.OpenAI
		return groq.NewClient(key,
			groq.WithProviderName(common.ProviderOpenAI),
			groq.WithBaseURL(cfg.BaseURL),
			groq.WithModel(cfg.Model),
			groq.WithTemperature(temperature),
			groq.WithRateLimit(cfg.RateLimit),
			groq.WithTimeout(cfg.GetTimeout()),
			groq.WithLogger(logger),
		), nil

	case common.ProviderGemini:
		key, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		client, err := gemini.NewClient(ctx, key,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTemperature(temperature),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return client, nil

	case common.ProviderClaude:
		key, err := common.ResolveAPIKey("anthropic_api_key", config.Clients.Claude.APIKey)
		if err != nil {
			return nil, err
		}
		client, err := claude.NewClient(key,
			claude.WithModel(config.Clients.Claude.Model),
			claude.WithMaxTokens(config.Clients.Claude.MaxTokens),
			claude.WithTemperature(temperature),
			claude.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	return nil, fmt.Errorf("unknown agent provider %q", config.Agent.Provider)
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}

// StartScheduler launches the cron refresh when scheduler.enabled is set.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Debug().Msg("Refresh scheduler disabled")
		return nil
	}
	s := NewScheduler(a.FundamentalsService, a.PriceService, a.Config.Scheduler, a.Logger)
	if err := s.Start(); err != nil {
		return err
	}
	a.scheduler = s
	return nil
}
