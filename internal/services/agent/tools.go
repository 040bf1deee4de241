package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// FinancialAnalyzerToolName is the name the model uses to call the ratio calculator.
const FinancialAnalyzerToolName = "financial_analyzer_tool"

// FinancialAnalyzerToolDescription is shown to the model and to MCP clients.
const FinancialAnalyzerToolDescription = "Calculates key financial ratios (P/E, P/B, ROE, Altman Z-Score) for a given stock ticker. " +
	"Returns the analysis as a JSON string. This is the primary tool for financial analysis."

// Tool is a capability the model can invoke by name with a single string input.
type Tool struct {
	Name        string
	Description string
	Run         func(ctx context.Context, input string) (string, error)
}

// NewFinancialAnalyzerTool exposes the ratio calculator as a tool. The
// observation is the ratio report JSON, including error envelopes.
func NewFinancialAnalyzerTool(ratios interfaces.RatioService) Tool {
	return Tool{
		Name:        FinancialAnalyzerToolName,
		Description: FinancialAnalyzerToolDescription,
		Run: func(ctx context.Context, input string) (string, error) {
			return AnalyzeTicker(ctx, ratios, input)
		},
	}
}

// AnalyzeTicker runs the ratio calculator for a raw ticker string and returns the report JSON.
func AnalyzeTicker(ctx context.Context, ratios interfaces.RatioService, input string) (string, error) {
	ticker, err := common.NormalizeTicker(input)
	if err != nil {
		body, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(body), nil
	}
	report := ratios.Calculate(ctx, ticker)
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode ratio report: %w", err)
	}
	return string(body), nil
}
