// Package config loads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/joho/godotenv"
)

const (
	defaultPort          = "3001"
	defaultCORSOrigin    = "http://localhost:5173"
	defaultRateLimit     = 100
	defaultRateWindow    = 15 * time.Minute
	defaultQueryTimeout  = 10 * time.Second
	defaultSQLMaxRetries = 1
)

type Config struct {
	ListenAddr  string
	CORSOrigins []string

	DBDriver string
	DBDSN    string
	DBSeed   bool

	AIProvider      string
	AIModel         string
	GoogleAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string

	RateLimit     int
	RateWindow    time.Duration
	QueryTimeout  time.Duration
	SQLMaxRetries int
	KeywordsFile  string
	DebugSQL      bool

	// ExposeConversations enables the audit log listing endpoint.
	ExposeConversations bool
}

// Load reads envFile (or .env when empty and present) and then the process
// environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ListenAddr:      env("LISTEN_ADDR", ":"+env("PORT", defaultPort)),
		CORSOrigins:     splitList(env("CORS_ORIGINS", defaultCORSOrigin)),
		DBDriver:        env("DB_DRIVER", string(store.DriverDuckDB)),
		DBDSN:           env("DB_DSN", ""),
		AIProvider:      strings.ToLower(env("AI_PROVIDER", "")),
		AIModel:         env("AI_MODEL", ""),
		GoogleAPIKey:    env("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:    env("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   env("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: env("ANTHROPIC_API_KEY", ""),
		KeywordsFile:    env("KEYWORDS_FILE", ""),
	}

	var errs []error
	cfg.RateLimit = parseInt(env("RATE_LIMIT", ""), "RATE_LIMIT", defaultRateLimit, &errs)
	cfg.SQLMaxRetries = parseInt(env("SQL_MAX_RETRIES", ""), "SQL_MAX_RETRIES", defaultSQLMaxRetries, &errs)
	cfg.RateWindow = parseDuration(env("RATE_WINDOW", ""), "RATE_WINDOW", defaultRateWindow, &errs)
	cfg.QueryTimeout = parseDuration(env("QUERY_TIMEOUT", ""), "QUERY_TIMEOUT", defaultQueryTimeout, &errs)
	cfg.DebugSQL = parseBool(env("DEBUG_SQL", ""), "DEBUG_SQL", false, &errs)
	cfg.ExposeConversations = parseBool(env("EXPOSE_CONVERSATIONS", ""), "EXPOSE_CONVERSATIONS", false, &errs)
	// In-memory demo databases are seeded unless told otherwise.
	cfg.DBSeed = parseBool(env("DB_SEED", ""), "DB_SEED", cfg.DBDSN == "" && cfg.DBDriver == string(store.DriverDuckDB), &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive, got %s", c.RateWindow)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.AIProvider == "" {
		c.AIProvider = c.detectProvider()
	}
	switch c.AIProvider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderNone:
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	return nil
}

// detectProvider picks the first provider with a key.
func (c *Config) detectProvider() string {
	switch {
	case c.GoogleAPIKey != "":
		return llm.ProviderGemini
	case c.OpenAIAPIKey != "":
		return llm.ProviderOpenAI
	case c.AnthropicAPIKey != "":
		return llm.ProviderAnthropic
	default:
		return llm.ProviderNone
	}
}

// LLM returns the provider settings for the selected provider.
func (c *Config) LLM() llm.Config {
	cfg := llm.Config{Provider: c.AIProvider, Model: c.AIModel}
	switch c.AIProvider {
	case llm.ProviderGemini:
		cfg.APIKey = c.GoogleAPIKey
	case llm.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
		cfg.BaseURL = c.OpenAIBaseURL
	case llm.ProviderAnthropic:
		cfg.APIKey = c.AnthropicAPIKey
	}
	return cfg
}

// Store returns the database settings.
func (c *Config) Store(log *slog.Logger) store.Config {
	return store.Config{
		Logger:       log,
		Driver:       store.Driver(c.DBDriver),
		DSN:          c.DBDSN,
		QueryTimeout: c.QueryTimeout,
	}
}

// LogValue renders the config with secrets redacted.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("listen_addr", c.ListenAddr),
		slog.Any("cors_origins", c.CORSOrigins),
		slog.String("db_driver", c.DBDriver),
		slog.String("db_dsn", redact(c.DBDSN)),
		slog.Bool("db_seed", c.DBSeed),
		slog.String("ai_provider", c.AIProvider),
		slog.String("ai_model", c.AIModel),
		slog.String("google_api_key", redact(c.GoogleAPIKey)),
		slog.String("openai_api_key", redact(c.OpenAIAPIKey)),
		slog.String("anthropic_api_key", redact(c.AnthropicAPIKey)),
		slog.Int("rate_limit", c.RateLimit),
		slog.Duration("rate_window", c.RateWindow),
		slog.Duration("query_timeout", c.QueryTimeout),
		slog.Int("sql_max_retries", c.SQLMaxRetries),
		slog.String("keywords_file", c.KeywordsFile),
		slog.Bool("debug_sql", c.DebugSQL),
		slog.Bool("expose_conversations", c.ExposeConversations),
	)
}

func redact(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "redacted"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(v, key string, def int, errs *[]error) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return n
}

func parseDuration(v, key string, def time.Duration, errs *[]error) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return d
}

func parseBool(v, key string, def bool, errs *[]error) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return b
}
