package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/agent"
)

const (
	// AnalyzeCompanyToolName runs the full agent loop over MCP.
	AnalyzeCompanyToolName = "analyze_company"
	// TechnicalsToolName summarises recent price action.
	TechnicalsToolName = "get_technicals"
)

// registerTools registers the MCP tools on the App's MCPServer.
// analyze_company is only offered when an agent backend is configured.
func (a *App) registerTools() {
	s := a.MCPServer

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createFinancialAnalyzerTool(), handleFinancialAnalyzer(a.RatioService, a.Logger))
	s.AddTool(createTechnicalsTool(), handleTechnicals(a.TechnicalsService, a.Logger))
	if a.Agent != nil {
		s.AddTool(createAnalyzeCompanyTool(), handleAnalyzeCompany(a.Agent, a.Logger))
	}
}

func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Tally server version and status. Use this to verify connectivity."),
	)
}

func createFinancialAnalyzerTool() mcp.Tool {
	return mcp.NewTool(agent.FinancialAnalyzerToolName,
		mcp.WithDescription(agent.FinancialAnalyzerToolDescription),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker (e.g., 'AAPL', 'MSFT'). Statements must have been fetched first."),
		),
	)
}

func createTechnicalsTool() mcp.Tool {
	return mcp.NewTool(TechnicalsToolName,
		mcp.WithDescription("Moving averages, RSI, ATR, volume ratio, support/resistance and trend for a ticker's daily prices. Prices are fetched live and not stored."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker (e.g., 'AAPL')"),
		),
		mcp.WithString("period",
			mcp.Description("History window: 1mo, 3mo, 6mo, 1y (default), 2y, 5y, 10y, ytd, max"),
		),
	)
}

func createAnalyzeCompanyTool() mcp.Tool {
	return mcp.NewTool(AnalyzeCompanyToolName,
		mcp.WithDescription("Run the analysis agent for a ticker. The agent calls the ratio calculator and returns its final answer as JSON."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker (e.g., 'AAPL')"),
		),
		mcp.WithString("query",
			mcp.Description("Question for the agent (default: run a full financial analysis)"),
		),
	)
}

func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Tally MCP Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

// handleFinancialAnalyzer returns the ratio report JSON. Domain errors such as a
// missing statement are part of the report, not tool errors.
func handleFinancialAnalyzer(ratios interfaces.RatioService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		body, err := agent.AnalyzeTicker(ctx, ratios, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Financial analyzer tool failed")
			return errorResult(fmt.Sprintf("Analysis error: %v", err)), nil
		}
		return textResult(body), nil
	}
}

func handleTechnicals(svc interfaces.TechnicalsService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}
		normalized, err := common.NormalizeTicker(ticker)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		snap, err := svc.Snapshot(ctx, normalized, request.GetString("period", ""))
		if err != nil {
			logger.Warn().Err(err).Str("ticker", normalized).Msg("Technicals tool failed")
			return errorResult(fmt.Sprintf("Data not found for ticker %s: %v", normalized, err)), nil
		}

		body, err := json.Marshal(snap)
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode technicals: %v", err)), nil
		}
		return textResult(string(body)), nil
	}
}

func handleAnalyzeCompany(analyst interfaces.AnalysisAgent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}
		normalized, err := common.NormalizeTicker(ticker)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		query := request.GetString("query", models.DefaultAnalysisQuery)

		result, err := analyst.Analyze(ctx, normalized, query)
		if err != nil {
			logger.Error().Err(err).Str("ticker", normalized).Msg("Agent analysis failed")
			return errorResult(fmt.Sprintf("Failed to run analysis: %v", err)), nil
		}

		body, err := json.Marshal(result)
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode analysis: %v", err)), nil
		}
		return textResult(string(body)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
