// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/registry"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Crawler    CrawlerConfig             `mapstructure:"crawler"`
	Classifier ClassifierConfig          `mapstructure:"classifier"`
	Extraction ExtractionConfig          `mapstructure:"extraction"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	DB         DBConfig                  `mapstructure:"db"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Sources    []registry.SourceConfig   `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs listing-page scans.
type CrawlerConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ClassifierConfig governs text-vs-scan routing and the OCR sidecar.
type ClassifierConfig struct {
	MinCharsPerPage   float64 `mapstructure:"min_chars_per_page"`
	OCREndpoint       string  `mapstructure:"ocr_endpoint"`
	OCRTimeoutSeconds int     `mapstructure:"ocr_timeout_seconds"`
}

// ExtractionConfig governs the LLM extraction engine.
type ExtractionConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxInputChars   int    `mapstructure:"max_input_chars"`
}

// ProviderConfig holds one LLM provider's credential, model, and published
// quota limits. Limits are configuration, not per-call-site constants.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	RPM     int    `mapstructure:"rpm"`
	RPD     int    `mapstructure:"rpd"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROJGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.timeout_seconds", 20)
	v.SetDefault("classifier.min_chars_per_page", 50)
	v.SetDefault("classifier.ocr_timeout_seconds", 120)
	v.SetDefault("extraction.default_provider", "gemini")
	v.SetDefault("extraction.timeout_seconds", 90)
	v.SetDefault("extraction.max_input_chars", 20000)
	// Published free-tier limits; override in config when plans change.
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("providers.gemini.rpm", 15)
	v.SetDefault("providers.gemini.rpd", 1500)
	v.SetDefault("providers.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("providers.groq.rpm", 30)
	v.SetDefault("providers.groq.rpd", 14400)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		return fmt.Errorf("extraction.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if _, ok := c.Providers[c.Extraction.DefaultProvider]; !ok {
		return fmt.Errorf("extraction.default_provider %q has no providers entry", c.Extraction.DefaultProvider)
	}
	for name, pc := range c.Providers {
		if pc.RPM < 0 || pc.RPD < 0 {
			return fmt.Errorf("providers.%s: rpm/rpd must be >= 0", name)
		}
	}
	return nil
}

// CrawlTimeout converts the crawler timeout into a duration.
func (c Config) CrawlTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// OCRTimeout converts the OCR timeout into a duration.
func (c Config) OCRTimeout() time.Duration {
	return time.Duration(c.Classifier.OCRTimeoutSeconds) * time.Second
}

// ExtractionTimeout converts the per-run extraction timeout into a duration.
func (c Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}
