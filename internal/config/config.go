package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIEndpoint = "https://api.perplexity.ai/chat/completions"
	DefaultModel       = "sonar-pro"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultStatusTTL   = 3000 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	DBPath string `toml:"db_path"`
	LogDir string `toml:"log_dir"`
	Debug  bool   `toml:"debug"`

	// Completion API
	APIEndpoint string  `toml:"api_endpoint"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`

	// Popup behaviour
	StatusClearMillis int  `toml:"status_clear_ms"`
	KeepPendingQuery  bool `toml:"keep_pending_query"` // leave pendingQuery in storage after the popup reads it

	// Page context
	Page         string `toml:"page"`           // URL or file path of the page loaded into the local page agent
	Selection    string `toml:"selection"`      // text selected on that page at startup
	PageAgentURL string `toml:"page_agent_url"` // ws:// address of a remote page agent; overrides Page
}

// Default returns the configuration used when no file or flag overrides a field.
func Default() Config {
	return Config{
		DBPath:            "assistant.db",
		LogDir:            "logs",
		APIEndpoint:       DefaultAPIEndpoint,
		Model:             DefaultModel,
		Temperature:       DefaultTemperature,
		MaxTokens:         DefaultMaxTokens,
		StatusClearMillis: int(DefaultStatusTTL / time.Millisecond),
	}
}

// Load reads a TOML config from path over the defaults, expanding ${VAR}
// references from the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	u, err := url.Parse(c.APIEndpoint)
	if err != nil {
		return fmt.Errorf("invalid api_endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_endpoint must use http or https, got %q", u.Scheme)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.StatusClearMillis <= 0 {
		return fmt.Errorf("status_clear_ms must be positive, got %d", c.StatusClearMillis)
	}

	if c.PageAgentURL != "" {
		u, err := url.Parse(c.PageAgentURL)
		if err != nil {
			return fmt.Errorf("invalid page_agent_url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("page_agent_url must use ws or wss, got %q", u.Scheme)
		}
	}

	return nil
}

// StatusTTL is how long a status message stays visible.
func (c Config) StatusTTL() time.Duration {
	return time.Duration(c.StatusClearMillis) * time.Millisecond
}
