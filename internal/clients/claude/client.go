// Package claude provides a completion client for Anthropic's Messages API
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

const (
	DefaultModel       = "claude-3-5-haiku-latest"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.6
)

// Client implements the CompletionClient interface
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	logger      arbor.ILogger
}

var _ interfaces.CompletionClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*clientOptions)

type clientOptions struct {
	model       string
	maxTokens   int64
	temperature float64
	baseURL     string
	logger      arbor.ILogger
}

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithMaxTokens sets the response token limit
func WithMaxTokens(n int64) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = t
	}
}

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a new Claude client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	o := &clientOptions{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(o.baseURL))
	}

	return &Client{
		client:      anthropic.NewClient(requestOpts...),
		model:       o.model,
		maxTokens:   o.maxTokens,
		temperature: o.temperature,
		logger:      o.logger,
	}, nil
}

// Name identifies the backend and model
func (c *Client) Name() string {
	return "claude:" + c.model
}

// Complete sends prompt as a single user message and returns the concatenated text blocks
func (c *Client) Complete(ctx context.Context, prompt string, stop []string) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Claude completion request")

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(c.temperature),
	}
	if len(stop) > 0 {
		params.StopSequences = stop
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return text.String(), nil
}
