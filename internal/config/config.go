// Package config handles configuration loading for stockbrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when the primary LLM provider has no API key.
var ErrMissingCredential = errors.New("config: generative model API key is not set")

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	DataSource DataSourceConfig `mapstructure:"datasource" yaml:"datasource"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"   yaml:"analysis"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary      string   `mapstructure:"primary"        yaml:"primary"        validate:"required,oneof=gemini openai anthropic ollama"`
	Fallbacks    []string `mapstructure:"fallbacks"      yaml:"fallbacks"      validate:"dive,oneof=gemini openai anthropic ollama"`
	GeminiKey    string   `mapstructure:"gemini_key"     yaml:"gemini_key"`
	OpenAIKey    string   `mapstructure:"openai_key"     yaml:"openai_key"`
	AnthropicKey string   `mapstructure:"anthropic_key"  yaml:"anthropic_key"`
	OllamaURL    string   `mapstructure:"ollama_url"     yaml:"ollama_url"     validate:"omitempty,url"`
	BaseURL      string   `mapstructure:"base_url"       yaml:"base_url"       validate:"omitempty,url"` // overrides the primary provider endpoint
	Model        string   `mapstructure:"model"          yaml:"model"`
	Temperature  float64  `mapstructure:"temperature"    yaml:"temperature"    validate:"gte=0,lte=2"`
	MaxTokens    int      `mapstructure:"max_tokens"     yaml:"max_tokens"     validate:"gte=0"`
	MaxRetries   int      `mapstructure:"max_retries"    yaml:"max_retries"    validate:"gte=0,lte=5"`
	TimeoutSec   int      `mapstructure:"timeout_sec"    yaml:"timeout_sec"    validate:"gte=0"`
}

// DataSourceConfig holds market-data provider settings.
type DataSourceConfig struct {
	YahooBaseURL   string  `mapstructure:"yahoo_base_url"   yaml:"yahoo_base_url"   validate:"required,url"`
	YahooCookieURL string  `mapstructure:"yahoo_cookie_url" yaml:"yahoo_cookie_url" validate:"omitempty,url"`
	RSSBaseURL     string  `mapstructure:"rss_base_url"     yaml:"rss_base_url"     validate:"omitempty,url"`
	RateLimit      float64 `mapstructure:"rate_limit"       yaml:"rate_limit"       validate:"gt=0"` // requests per second
	UseEquity      bool    `mapstructure:"use_equity"       yaml:"use_equity"`                        // secondary finance-go source
	TimeoutSec     int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"      validate:"gte=0"`
}

// AnalysisConfig holds pipeline settings.
type AnalysisConfig struct {
	StrictReport bool `mapstructure:"strict_report" yaml:"strict_report"`
	Headlines    int  `mapstructure:"headlines"     yaml:"headlines"     validate:"gte=0,lte=20"` // 0 disables headline context
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host           string   `mapstructure:"host"            yaml:"host"`
	Port           int      `mapstructure:"port"            yaml:"port"            validate:"gte=1,lte=65535"`
	CORSOrigins    []string `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout int      `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gte=0"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockbrief/config.yaml (home directory)
//  3. /etc/stockbrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKBRIEF_<SECTION>_<KEY>, e.g., STOCKBRIEF_LLM_GEMINI_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockbrief"))
	v.AddConfigPath("/etc/stockbrief")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STOCKBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Primary)
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireCredential fails when the primary provider cannot authenticate.
// Ollama runs locally and needs only a URL.
func (c *Config) RequireCredential() error {
	switch c.LLM.Primary {
	case "gemini":
		if c.LLM.GeminiKey == "" {
			return fmt.Errorf("%w: set GOOGLE_API_KEY or STOCKBRIEF_LLM_GEMINI_KEY", ErrMissingCredential)
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY or STOCKBRIEF_LLM_OPENAI_KEY", ErrMissingCredential)
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			return fmt.Errorf("%w: set ANTHROPIC_API_KEY or STOCKBRIEF_LLM_ANTHROPIC_KEY", ErrMissingCredential)
		}
	case "ollama":
		if c.LLM.OllamaURL == "" {
			return fmt.Errorf("%w: set STOCKBRIEF_LLM_OLLAMA_URL", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrMissingCredential, c.LLM.Primary)
	}
	return nil
}

// Addr returns the host:port the API server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// DefaultModel returns the model used when llm.model is unset.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "ollama":
		return "qwen2.5:7b"
	default:
		return "gemini-2.5-flash"
	}
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "gemini")
	v.SetDefault("llm.fallbacks", []string{})
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.timeout_sec", 120)

	// Data source defaults
	v.SetDefault("datasource.yahoo_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("datasource.yahoo_cookie_url", "https://fc.yahoo.com")
	v.SetDefault("datasource.rss_base_url", "https://feeds.finance.yahoo.com")
	v.SetDefault("datasource.rate_limit", 2.0)
	v.SetDefault("datasource.use_equity", true)
	v.SetDefault("datasource.timeout_sec", 15)

	// Analysis defaults
	v.SetDefault("analysis.strict_report", true)
	v.SetDefault("analysis.headlines", 0)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.request_timeout", 180)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The provider SDKs' conventional variables are honoured when no prefixed
// variable is set.
func overrideFromEnv(cfg *Config) {
	cfg.LLM.GeminiKey = firstEnv(cfg.LLM.GeminiKey, "STOCKBRIEF_LLM_GEMINI_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	cfg.LLM.OpenAIKey = firstEnv(cfg.LLM.OpenAIKey, "STOCKBRIEF_LLM_OPENAI_KEY", "OPENAI_API_KEY")
	cfg.LLM.AnthropicKey = firstEnv(cfg.LLM.AnthropicKey, "STOCKBRIEF_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
}

// firstEnv returns the first non-empty variable among names, else current.
// The prefixed variable wins over a config file value; the bare SDK
// variables only fill an empty value.
func firstEnv(current string, prefixed string, fallbacks ...string) string {
	if v := os.Getenv(prefixed); v != "" {
		return v
	}
	if current != "" {
		return current
	}
	for _, name := range fallbacks {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
