package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// API keys come from the environment only and are never read from the file.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GoogleAPIKey    string `yaml:"-"`
	DeepSeekAPIKey  string `yaml:"-"`
	TavilyAPIKey    string `yaml:"-"`

	LLM             LLMConfig           `yaml:"llm"`
	Handlers        []HandlerConfig     `yaml:"handlers"`
	Fallback        string              `yaml:"fallback"`
	Retry           RetryConfig         `yaml:"retry"`
	Server          ServerConfig        `yaml:"server"`
	Postgres        PostgresConfig      `yaml:"postgres"`
	Search          SearchConfig        `yaml:"search"`
	Visualization   VisualizationConfig `yaml:"visualization"`
	Runs            RunsConfig          `yaml:"runs"`
	ClassifierCache CacheConfig         `yaml:"classifier_cache"`
	Aliases         map[string]string   `yaml:"aliases"`
	LogLevel        string              `yaml:"log_level"`

	// ParallelHandlers runs the selected handlers of a run concurrently.
	ParallelHandlers bool `yaml:"parallel_handlers"`

	ConfigDir string `yaml:"-"`
}

// LLMConfig selects the text-generation provider. Model fields accept aliases.
type LLMConfig struct {
	Adapter         string `yaml:"adapter"`
	Model           string `yaml:"model"`
	ClassifierModel string `yaml:"classifier_model,omitempty"`
	SynthesisModel  string `yaml:"synthesis_model,omitempty"`
}

// RetryConfig defines the fixed-delay retry policy applied to handler calls.
// DelayMs is nil when unset so that an explicit 0 disables the delay.
type RetryConfig struct {
	MaxAttempts int  `yaml:"max_attempts,omitempty"`
	DelayMs     *int `yaml:"delay_ms,omitempty"`
}

// Delay returns the inter-attempt delay.
func (r RetryConfig) Delay() time.Duration {
	if r.DelayMs == nil {
		return 0
	}
	return time.Duration(*r.DelayMs) * time.Millisecond
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	CORSOrigin     string        `yaml:"cors_origin"`
	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// PostgresConfig holds the connection parameters of the lookup database.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// SearchConfig configures the web search handler.
type SearchConfig struct {
	MaxResults  int    `yaml:"max_results"`
	SearchDepth string `yaml:"search_depth"`
}

// VisualizationConfig configures where chart artifacts are written.
type VisualizationConfig struct {
	Dir string `yaml:"dir"`
}

// RunsConfig bounds the in-memory run store.
type RunsConfig struct {
	MaxRuns int           `yaml:"max_runs"`
	TTL     time.Duration `yaml:"ttl"`
}

// CacheConfig configures the classification cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxCost int64         `yaml:"max_cost"`
}

// Load reads ~/.finquery/config.yaml (if present) and the environment.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg, err := load(filepath.Join(configDir, "config.yaml"), false)
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = configDir
	return cfg, nil
}

// LoadFile loads configuration from an explicit path. Unlike Load, a missing
// file is an error.
func LoadFile(path string) (*Config, error) {
	cfg, err := load(path, true)
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = filepath.Dir(path)
	return cfg, nil
}

func load(path string, required bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	loadEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration built from defaults and the environment.
func Default() *Config {
	cfg := &Config{}
	loadEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func loadEnv(cfg *Config) {
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")

	cfg.Postgres.Host = getEnvOrDefault("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Database = getEnvOrDefault("POSTGRES_DB", cfg.Postgres.Database)
	cfg.Postgres.User = getEnvOrDefault("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password)
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}

	cfg.Server.Addr = getEnvOrDefault("FINQUERY_ADDR", cfg.Server.Addr)
	cfg.LogLevel = getEnvOrDefault("FINQUERY_LOG_LEVEL", cfg.LogLevel)
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Adapter == "" {
		cfg.LLM.Adapter = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "fast"
	}
	if cfg.LLM.ClassifierModel == "" {
		cfg.LLM.ClassifierModel = cfg.LLM.Model
	}
	if cfg.LLM.SynthesisModel == "" {
		cfg.LLM.SynthesisModel = cfg.LLM.Model
	}

	if len(cfg.Handlers) == 0 {
		cfg.Handlers = DefaultHandlers()
	}
	if cfg.Fallback == "" {
		cfg.Fallback = DefaultFallback
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.DelayMs == nil {
		delay := 1000
		cfg.Retry.DelayMs = &delay
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Server.Workers <= 0 {
		cfg.Server.Workers = 10
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = "djia"
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = "postgres"
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}

	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.SearchDepth == "" {
		cfg.Search.SearchDepth = "advanced"
	}

	if cfg.Visualization.Dir == "" {
		cfg.Visualization.Dir = "./visualizations"
	}

	if cfg.Runs.MaxRuns <= 0 {
		cfg.Runs.MaxRuns = 256
	}
	if cfg.Runs.TTL <= 0 {
		cfg.Runs.TTL = 30 * time.Minute
	}

	if cfg.ClassifierCache.TTL <= 0 {
		cfg.ClassifierCache.TTL = 10 * time.Minute
	}
	if cfg.ClassifierCache.MaxCost <= 0 {
		cfg.ClassifierCache.MaxCost = 1 << 20
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("handler with empty name")
		}
		if seen[h.Name] {
			return fmt.Errorf("duplicate handler %q", h.Name)
		}
		seen[h.Name] = true
		if h.Threshold < 0 || h.Threshold > 1 {
			return fmt.Errorf("handler %q: threshold %.2f outside [0,1]", h.Name, h.Threshold)
		}
	}
	if !seen[cfg.Fallback] {
		return fmt.Errorf("fallback handler %q is not registered", cfg.Fallback)
	}
	if cfg.Retry.DelayMs != nil && *cfg.Retry.DelayMs < 0 {
		return fmt.Errorf("retry delay_ms %d is negative", *cfg.Retry.DelayMs)
	}
	return nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	return c.APIKey(name) != "" || name == "mock"
}

// APIKey returns the key configured for an adapter, or "".
func (c *Config) APIKey(name string) string {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "google":
		return c.GoogleAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return ""
	}
}

// ModelAliases returns the built-in aliases overlaid with the configured ones.
func (c *Config) ModelAliases() *ModelAliases {
	aliases := DefaultAliases()
	for k, v := range c.Aliases {
		aliases.Aliases[k] = v
	}
	return aliases
}

// Level converts the configured log level into a slog.Level.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".finquery"), nil
}
