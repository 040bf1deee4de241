// Package alphavantage provides a client for the Alpha Vantage earnings calendar
package alphavantage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1 // requests per second
)

// Horizons accepted by the EARNINGS_CALENDAR function.
var Horizons = []string{"3month", "6month", "12month"}

// ValidHorizon reports whether h is an accepted horizon token.
func ValidHorizon(h string) bool {
	for _, v := range Horizons {
		if v == h {
			return true
		}
	}
	return false
}

// Provider error kinds
const (
	KindMissingKey  = "missing_key"
	KindEmpty       = "empty_response"
	KindRateLimited = "rate_limited"
	KindProvider    = "provider_error"
)

// ProviderError is a configuration or provider-side failure, as opposed to a transport error.
type ProviderError struct {
	Kind    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = &ProviderError{Kind: KindMissingKey, Message: "Alpha Vantage API key is not configured"}

// Client implements the EarningsCalendarClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

var _ interfaces.EarningsCalendarClient = (*Client)(nil)

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

// NewClient creates a new Alpha Vantage client. An empty key is allowed;
// calls then fail with ErrMissingAPIKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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

// GetEarningsCalendar fetches the EARNINGS_CALENDAR CSV for a symbol.
// Rows are returned as column -> value maps in feed order.
func (c *Client) GetEarningsCalendar(ctx context.Context, symbol, horizon string) ([]models.EarningsEvent, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("function", "EARNINGS_CALENDAR")
	params.Set("symbol", symbol)
	params.Set("horizon", horizon)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("horizon", horizon).Msg("Alpha Vantage earnings calendar request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Kind:    KindProvider,
			Message: fmt.Sprintf("Alpha Vantage returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &ProviderError{Kind: KindEmpty, Message: "Alpha Vantage returned an empty response"}
	}

	// Notices (rate limit, bad key) arrive as JSON instead of CSV
	if body[0] == '{' {
		return nil, parseNotice(body)
	}

	return parseCalendarCSV(body)
}

// parseNotice converts a JSON notice body into a ProviderError
func parseNotice(body []byte) error {
	var notice map[string]string
	if err := json.Unmarshal(body, &notice); err != nil {
		return &ProviderError{Kind: KindProvider, Message: "Alpha Vantage returned an unexpected JSON response"}
	}
	if msg := notice["Error Message"]; msg != "" {
		return &ProviderError{Kind: KindProvider, Message: msg}
	}
	for _, key := range []string{"Note", "Information"} {
		if msg := notice[key]; msg != "" {
			return &ProviderError{Kind: KindRateLimited, Message: msg}
		}
	}
	return &ProviderError{Kind: KindProvider, Message: "Alpha Vantage returned an unexpected JSON response"}
}

// parseCalendarCSV reads a header row followed by data rows
func parseCalendarCSV(body []byte) ([]models.EarningsEvent, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse earnings calendar CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, &ProviderError{Kind: KindEmpty, Message: "Alpha Vantage returned an empty response"}
	}

	header := records[0]
	events := make([]models.EarningsEvent, 0, len(records)-1)
	for _, rec := range records[1:] {
		event := make(models.EarningsEvent, len(header))
		for i, col := range header {
			if i < len(rec) {
				event[col] = rec[i]
			} else {
				event[col] = ""
			}
		}
		events = append(events, event)
	}
	return events, nil
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
