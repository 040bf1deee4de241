// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
)

// Client implements the EODHDClient interface
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

var _ interfaces.EODHDClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithDefaultExchange sets the exchange suffix applied to bare tickers (AAPL -> AAPL.US)
func WithDefaultExchange(exchange string) ClientOption {
	return func(c *Client) {
		if exchange != "" {
			c.exchange = strings.ToUpper(exchange)
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// symbol qualifies a bare ticker with the default exchange
func (c *Client) symbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(t, ".") {
		return t
	}
	return t + "." + c.exchange
}

// get performs a rate-limited GET request. Numbers decoded into interface
// values are kept as json.Number.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetEOD retrieves end-of-day price data, oldest first
func (c *Client) GetEOD(ctx context.Context, ticker string, opts ...interfaces.EODOption) (*models.EODResponse, error) {
	params := &interfaces.EODParams{
		Period: "d",
		Order:  "a",
	}

	for _, opt := range opts {
		opt(params)
	}

	urlParams := url.Values{}
	urlParams.Set("period", params.Period)
	urlParams.Set("order", params.Order)

	if !params.From.IsZero() {
		urlParams.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		urlParams.Set("to", params.To.Format("2006-01-02"))
	}

	path := fmt.Sprintf("/eod/%s", url.PathEscape(c.symbol(ticker)))

	var bars []eodBarResponse
	if err := c.get(ctx, path, urlParams, &bars); err != nil {
		return nil, err
	}

	result := &models.EODResponse{
		Data: make([]models.EODBar, 0, len(bars)),
	}

	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", bar.Date).Msg("Skipping EOD bar with unparseable date")
			continue
		}
		volume := int64(bar.Volume)
		if volume < 0 {
			c.logger.Warn().Str("ticker", ticker).Str("date", bar.Date).Int64("volume", volume).Msg("Negative EOD volume clamped to zero")
			volume = 0
		}
		result.Data = append(result.Data, models.EODBar{
			Date:     date,
			Open:     float64(bar.Open),
			High:     float64(bar.High),
			Low:      float64(bar.Low),
			Close:    float64(bar.Close),
			AdjClose: float64(bar.AdjustedClose),
			Volume:   volume,
		})
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Date.Before(result.Data[j].Date)
	})

	return result, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// financialsResponse is the Financials section of the fundamentals endpoint
type financialsResponse struct {
	BalanceSheet    statementSection `json:"Balance_Sheet"`
	IncomeStatement statementSection `json:"Income_Statement"`
	CashFlow        statementSection `json:"Cash_Flow"`
}

type statementSection struct {
	CurrencySymbol string                    `json:"currency_symbol"`
	Yearly         map[string]map[string]any `json:"yearly"`
}

// GetFinancialStatements retrieves all yearly statements. Line-item values are
// returned as decoded (json.Number, string or nil) and normalized by the caller.
func (c *Client) GetFinancialStatements(ctx context.Context, ticker string) ([]models.RawStatement, error) {
	path := fmt.Sprintf("/fundamentals/%s", url.PathEscape(c.symbol(ticker)))
	params := url.Values{}
	params.Set("filter", "Financials")

	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return nil, err
	}

	// Unknown symbols and non-equities come back as [] or null rather than an object
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var resp financialsResponse
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode financials: %w", err)
	}

	sections := []struct {
		statementType models.StatementType
		section       statementSection
	}{
		{models.IncomeStatement, resp.IncomeStatement},
		{models.BalanceSheet, resp.BalanceSheet},
		{models.CashFlow, resp.CashFlow},
	}

	var statements []models.RawStatement
	for _, s := range sections {
		for periodKey, items := range s.section.Yearly {
			period, err := time.Parse("2006-01-02", periodKey)
			if err != nil {
				c.logger.Warn().Str("ticker", ticker).Str("period", periodKey).Msg("Skipping statement with unparseable period")
				continue
			}
			statements = append(statements, models.RawStatement{
				Type:   s.statementType,
				Period: period,
				Items:  items,
			})
		}
	}

	sort.Slice(statements, func(i, j int) bool {
		if statements[i].Type != statements[j].Type {
			return statements[i].Type < statements[j].Type
		}
		return statements[i].Period.Before(statements[j].Period)
	})

	c.logger.Debug().Str("ticker", ticker).Int("statements", len(statements)).Msg("Fetched financial statements")

	return statements, nil
}

// GetMarketCap retrieves the current market capitalization
func (c *Client) GetMarketCap(ctx context.Context, ticker string) (float64, error) {
	path := fmt.Sprintf("/fundamentals/%s", url.PathEscape(c.symbol(ticker)))
	params := url.Values{}
	params.Set("filter", "Highlights::MarketCapitalization")

	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return 0, err
	}

	var marketCap flexFloat64
	if err := json.Unmarshal(raw, &marketCap); err != nil {
		// anything that is not a number (e.g. [] for unknown symbols) counts as missing
		return 0, nil
	}
	return float64(marketCap), nil
}
