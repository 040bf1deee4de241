// Package common provides shared utilities for Tally
package common

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage backend names.
const (
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
)

// Agent provider names.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Config holds all configuration for Tally
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Agent       AgentConfig     `toml:"agent"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// StorageConfig selects the persistence backend.
// Only the selected backend's block is validated.
type StorageConfig struct {
	Backend   string          `toml:"backend" validate:"oneof=postgres surrealdb"`
	Postgres  PostgresConfig  `toml:"postgres" validate:"-"`
	SurrealDB SurrealDBConfig `toml:"surrealdb" validate:"-"`
}

// Address returns a printable address for the selected backend.
func (s *StorageConfig) Address() string {
	if s.Backend == BackendSurrealDB {
		return s.SurrealDB.Address
	}
	return net.JoinHostPort(s.Postgres.Host, strconv.Itoa(s.Postgres.Port))
}

// PostgresConfig holds the relational store connection settings
type PostgresConfig struct {
	User     string `toml:"user" validate:"required"`
	Password string `toml:"password" validate:"required"`
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"required,min=1,max=65535"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int32  `toml:"max_conns"`
}

// DatabaseURL builds a postgres:// connection string with escaped credentials.
func (c *PostgresConfig) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// SurrealDBConfig holds SurrealDB connection settings
type SurrealDBConfig struct {
	Address   string `toml:"address" validate:"required"`
	Username  string `toml:"username" validate:"required"`
	Password  string `toml:"password" validate:"required"`
	Namespace string `toml:"namespace" validate:"required"`
	Database  string `toml:"database" validate:"required"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD        EODHDConfig          `toml:"eodhd"`
	AlphaVantage AlphaVantageConfig   `toml:"alphavantage"`
	Groq         ChatCompletionConfig `toml:"groq"`
	OpenAI       ChatCompletionConfig `toml:"openai"`
	Gemini       GeminiConfig         `toml:"gemini"`
	Claude       ClaudeConfig         `toml:"claude"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RateLimit       int    `toml:"rate_limit" validate:"min=1"`
	Timeout         string `toml:"timeout"`
	DefaultExchange string `toml:"default_exchange"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 30*time.Second)
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit" validate:"min=1"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AlphaVantageConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 30*time.Second)
}

// ChatCompletionConfig configures an OpenAI-compatible chat completions endpoint (Groq, OpenAI).
type ChatCompletionConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	RateLimit int    `toml:"rate_limit" validate:"min=1"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ChatCompletionConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 60*time.Second)
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// ClaudeConfig holds Anthropic API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int64  `toml:"max_tokens"`
}

// AgentConfig holds the analysis agent settings
type AgentConfig struct {
	Provider      string  `toml:"provider" validate:"oneof=groq openai gemini claude"`
	MaxIterations int     `toml:"max_iterations" validate:"min=1,max=20"`
	Temperature   float64 `toml:"temperature" validate:"min=0,max=2"`
	Timeout       string  `toml:"timeout"`
}

// GetTimeout parses and returns the per-request agent timeout
func (c *AgentConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 2*time.Minute)
}

// SchedulerConfig holds the background refresh settings
type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"`
	Tickers  []string `toml:"tickers"`
	Timeout  string   `toml:"timeout"`
}

// GetTimeout parses and returns the timeout applied to one scheduled run
func (c *SchedulerConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 10*time.Minute)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Storage: StorageConfig{
			Backend: BackendPostgres,
			Postgres: PostgresConfig{
				User:     "postgres",
				Password: "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "tally",
				SSLMode:  "disable",
				MaxConns: 10,
			},
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Username:  "root",
				Password:  "root",
				Namespace: "tally",
				Database:  "tally",
			},
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:         "https://eodhd.com/api",
				RateLimit:       10,
				Timeout:         "30s",
				DefaultExchange: "US",
			},
			AlphaVantage: AlphaVantageConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 1,
				Timeout:   "30s",
			},
			Groq: ChatCompletionConfig{
				BaseURL:   "https://api.groq.com/openai/v1",
				Model:     "llama-3.1-8b-instant",
				RateLimit: 2,
				Timeout:   "60s",
			},
			OpenAI: ChatCompletionConfig{
				BaseURL:   "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				RateLimit: 5,
				Timeout:   "60s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			Claude: ClaudeConfig{
				Model:     "claude-3-5-haiku-latest",
				MaxTokens: 2048,
			},
		},
		Agent: AgentConfig{
			Provider:      ProviderGroq,
			MaxIterations: 5,
			Temperature:   0.6,
			Timeout:       "2m",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 6 * * *",
			Timeout:  "10m",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Outputs:  []string{"console"},
			FilePath: "./logs/tally.log",
		},
	}
}

// LoadConfig loads configuration from files with .env and environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the process environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TALLY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TALLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("TALLY_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if provider := os.Getenv("TALLY_AGENT_PROVIDER"); provider != "" {
		config.Agent.Provider = strings.ToLower(provider)
	}

	if v := os.Getenv("TALLY_SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Scheduler.Enabled = b
		}
	}

	if v := os.Getenv("TALLY_SCHEDULER_TICKERS"); v != "" {
		var tickers []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, t)
			}
		}
		config.Scheduler.Tickers = tickers
	}

	// Relational store, same names the compose files use
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		config.Storage.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		config.Storage.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		config.Storage.Postgres.Database = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		config.Storage.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Storage.Postgres.Port = p
		}
	}

	if v := os.Getenv("TALLY_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}
}

// Validate checks the configuration and the selected storage backend block.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if err := v.Struct(c.Storage.Postgres); err != nil {
			return fmt.Errorf("invalid postgres configuration: %w", err)
		}
	case BackendSurrealDB:
		if err := v.Struct(c.Storage.SurrealDB); err != nil {
			return fmt.Errorf("invalid surrealdb configuration: %w", err)
		}
	}

	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Schedule) == "" {
		return fmt.Errorf("invalid configuration: scheduler enabled without a schedule")
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from the environment or the configured fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":         {"EODHD_API_KEY", "TALLY_EODHD_API_KEY"},
		"alpha_vantage_api_key": {"ALPHA_VANTAGE_API_KEY", "TALLY_ALPHA_VANTAGE_API_KEY"},
		"groq_api_key":          {"GROQ_API_KEY", "TALLY_GROQ_API_KEY"},
		"openai_api_key":        {"OPENAI_API_KEY", "TALLY_OPENAI_API_KEY"},
		"gemini_api_key":        {"GEMINI_API_KEY", "TALLY_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key":     {"ANTHROPIC_API_KEY", "TALLY_ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
