package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

func newTestApp(t *testing.T, llm *tcommon.MockCompletionClient) (*App, *tcommon.MemoryStorage) {
	t.Helper()
	storage := tcommon.NewMemoryStorage()
	deps := Dependencies{
		Storage:        storage,
		EODHDClient:    &tcommon.MockEODHDClient{MarketCap: 60},
		EarningsClient: &tcommon.MockEarningsClient{},
	}
	if llm != nil {
		deps.LLM = llm
	}
	a := New(common.NewDefaultConfig(), common.NewSilentLogger(), deps)
	t.Cleanup(a.Close)
	return a, storage
}

// TestNew_InitializesAllServices verifies that New wires every service and the MCP server.
func TestNew_InitializesAllServices(t *testing.T) {
	a, _ := newTestApp(t, &tcommon.MockCompletionClient{})

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.FundamentalsService)
	assert.NotNil(t, a.PriceService)
	assert.NotNil(t, a.RatioService)
	assert.NotNil(t, a.TechnicalsService)
	assert.NotNil(t, a.EarningsService)
	assert.NotNil(t, a.Agent)
	assert.NotNil(t, a.MCPServer)
	assert.False(t, a.StartupTime.IsZero())
}

func TestNew_NoLLMLeavesAgentUnset(t *testing.T) {
	a, _ := newTestApp(t, nil)
	assert.Nil(t, a.Agent)
}

func TestNew_RegistersTools(t *testing.T) {
	tests := []struct {
		name     string
		llm      *tcommon.MockCompletionClient
		expected []string
	}{
		{"without agent", nil, []string{"get_version", "financial_analyzer_tool", TechnicalsToolName}},
		{"with agent", &tcommon.MockCompletionClient{}, []string{"get_version", "financial_analyzer_tool", TechnicalsToolName, AnalyzeCompanyToolName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, tt.llm)
			c := newInProcessClient(t, a.MCPServer)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			require.NoError(t, err)

			var names []string
			for _, tool := range toolsResult.Tools {
				names = append(names, tool.Name)
			}
			assert.ElementsMatch(t, tt.expected, names)
		})
	}
}

func TestGetVersionTool(t *testing.T) {
	a, _ := newTestApp(t, nil)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "get_version", nil)

	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Tally MCP Server")
}

func TestFinancialAnalyzerTool_NotFoundIsReportNotToolError(t *testing.T) {
	a, _ := newTestApp(t, nil)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "financial_analyzer_tool", map[string]any{"ticker": "aapl"})

	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"error":"Financial data not found for AAPL. Please fetch it first."}`, resultText(t, result))
}

func TestFinancialAnalyzerTool_MissingTicker(t *testing.T) {
	a, _ := newTestApp(t, nil)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "financial_analyzer_tool", map[string]any{})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "ticker parameter is required")
}

func TestTechnicalsTool(t *testing.T) {
	a, _ := newTestApp(t, nil)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, TechnicalsToolName, map[string]any{"ticker": "acme", "period": "1mo"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Data not found for ticker ACME")

	result = callTool(t, c, TechnicalsToolName, map[string]any{"ticker": "not a ticker"})
	assert.True(t, result.IsError)
}

func TestAnalyzeCompanyTool_ReturnsParsedAnswer(t *testing.T) {
	llm := &tcommon.MockCompletionClient{Responses: []string{`Thought: done
Final Answer: {"verdict": "healthy"}`}}
	a, _ := newTestApp(t, llm)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, AnalyzeCompanyToolName, map[string]any{"ticker": "acme"})

	require.False(t, result.IsError, resultText(t, result))
	assert.JSONEq(t, `{"verdict":"healthy"}`, resultText(t, result))
	require.Len(t, llm.Prompts, 1)
	assert.Contains(t, llm.Prompts[0], "Analyze the company with ticker ACME. Run a full financial analysis.")
}

func TestAnalyzeCompanyTool_InvalidTicker(t *testing.T) {
	a, _ := newTestApp(t, &tcommon.MockCompletionClient{})
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, AnalyzeCompanyToolName, map[string]any{"ticker": "not a ticker"})

	assert.True(t, result.IsError)
}

// TestClose_IsIdempotent verifies that calling Close multiple times does not panic.
func TestClose_IsIdempotent(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.Close()
	a.Close()
	assert.Nil(t, a.Storage)
}

func TestStartScheduler_DisabledIsNoop(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.StartScheduler())
	assert.Nil(t, a.scheduler)
}

func TestStartScheduler_InvalidSchedule(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.Config.Scheduler.Enabled = true
	a.Config.Scheduler.Schedule = "not a cron"

	err := a.StartScheduler()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scheduler.schedule")
}

func TestStartScheduler_Enabled(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.Config.Scheduler.Enabled = true
	a.Config.Scheduler.Schedule = "0 6 * * *"

	require.NoError(t, a.StartScheduler())
	assert.NotNil(t, a.scheduler)
	a.Close()
	assert.Nil(t, a.scheduler)
}

// TestNewApp_InvalidConfigReturnsError verifies that an unparseable config file
// fails before any storage connection is attempted.
func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("{{{{invalid toml"), 0644))

	_, err := NewApp(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestNewApp_UnknownBackendReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tally.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[storage]\nbackend = \"sqlite\"\n"), 0644))

	_, err := NewApp(configPath)
	require.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv("TALLY_CONFIG", "/etc/tally/env.toml")
		assert.Equal(t, "/tmp/explicit.toml", resolveConfigPath("/tmp/explicit.toml", t.TempDir()))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("TALLY_CONFIG", "/etc/tally/env.toml")
		assert.Equal(t, "/etc/tally/env.toml", resolveConfigPath("", t.TempDir()))
	})

	t.Run("binary dir", func(t *testing.T) {
		t.Setenv("TALLY_CONFIG", "")
		dir := t.TempDir()
		path := filepath.Join(dir, "tally.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0644))
		assert.Equal(t, path, resolveConfigPath("", dir))
	})

	t.Run("development fallback", func(t *testing.T) {
		t.Setenv("TALLY_CONFIG", "")
		assert.Equal(t, "config/tally.toml", resolveConfigPath("", t.TempDir()))
	})
}

func TestNewCompletionClient(t *testing.T) {
	for _, name := range []string{
		"GROQ_API_KEY", "TALLY_GROQ_API_KEY",
		"OPENAI_API_KEY", "TALLY_OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "TALLY_ANTHROPIC_API_KEY",
	} {
		t.Setenv(name, "")
	}
	ctx := context.Background()
	logger := common.NewSilentLogger()

	t.Run("groq default", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gsk-test")
		config := common.NewDefaultConfig()

		llm, err := newCompletionClient(ctx, config, logger)
		require.NoError(t, err)
		assert.Equal(t, "groq:"+config.Clients.Groq.Model, llm.Name())
	})

	t.Run("openai uses the compatible client", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		config := common.NewDefaultConfig()
		config.Agent.Provider = common.ProviderOpenAI

		llm, err := newCompletionClient(ctx, config, logger)
		require.NoError(t, err)
		assert.Equal(t, "openai:"+config.Clients.OpenAI.Model, llm.Name())
	})

	t.Run("claude", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
		config := common.NewDefaultConfig()
		config.Agent.Provider = common.ProviderClaude

		llm, err := newCompletionClient(ctx, config, logger)
		require.NoError(t, err)
		assert.Equal(t, "claude:"+config.Clients.Claude.Model, llm.Name())
	})

	t.Run("missing key", func(t *testing.T) {
		config := common.NewDefaultConfig()

		llm, err := newCompletionClient(ctx, config, logger)
		require.Error(t, err)
		assert.Nil(t, llm)
	})

	t.Run("unknown provider", func(t *testing.T) {
		config := common.NewDefaultConfig()
		config.Agent.Provider = "llamafile"

		_, err := newCompletionClient(ctx, config, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown agent provider")
	})
}

// --- test helpers ---

// newInProcessClient creates an mcp-go in-process client connected to the given
// MCP server. Handles initialization handshake.
func newInProcessClient(t *testing.T, mcpServer *server.MCPServer) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(mcpServer)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	t.Cleanup(func() { c.Close() })
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	result, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}
