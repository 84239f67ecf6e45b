// Package config handles loading and validating Kazi configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Defaults applied by Load when the config file omits a value.
const (
	DefaultListenAddr = ":8480"
	DefaultModel      = "claude-sonnet-4-20250514"
	DefaultMaxTokens  = 4096
)

// Config is the root configuration for Kazi.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server"`
	Anthropic     AnthropicConfig      `json:"anthropic" yaml:"anthropic"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	ListenAddr    string `json:"listen_addr" yaml:"listen_addr"`         // Default: ":8480". Override: KAZI_LISTEN_ADDR env var.
	RunsPerMinute int    `json:"runs_per_minute" yaml:"runs_per_minute"` // Pipeline runs allowed per client per minute. 0 = unlimited.
}

// AnthropicConfig configures the LLM provider.
type AnthropicConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`       // Override: ANTHROPIC_API_KEY env var (takes precedence).
	Model     string `json:"model" yaml:"model"`           // Default: claude-sonnet-4-20250514.
	BaseURL   string `json:"base_url" yaml:"base_url"`     // Optional. Defaults to the public API endpoint.
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"` // Per-completion cap. Default: 4096.
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "kazi"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.kazi/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/kazi.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".kazi", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. A missing file is not an error — Kazi can start from
// environment variables alone. The API key can be set in the config file
// or overridden by ANTHROPIC_API_KEY; the environment takes precedence.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	var cfg Config
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	case os.IsNotExist(err):
		// Env-only startup.
	default:
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	// Environment variable overrides — env vars take precedence over config values.
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		cfg.Anthropic.APIKey = envKey
	}
	if envAddr := os.Getenv("KAZI_LISTEN_ADDR"); envAddr != "" {
		cfg.Server.ListenAddr = envAddr
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = DefaultModel
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = DefaultMaxTokens
	}
}

func (c *Config) validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required (set ANTHROPIC_API_KEY env var)")
	}
	if c.Anthropic.MaxTokens < 0 {
		return fmt.Errorf("anthropic.max_tokens must not be negative")
	}
	if c.Server.RunsPerMinute < 0 {
		return fmt.Errorf("server.runs_per_minute must not be negative")
	}
	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		t := c.Observability.Tracing
		if t.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch t.Protocol {
		case "", "grpc", "http":
			// valid
		default:
			return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", t.Protocol)
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			return fmt.Errorf("observability.tracing.sample_rate must be between 0.0 and 1.0")
		}
	}
	return nil
}

// MetricsEnabled reports whether Prometheus metrics are configured on.
func (c *Config) MetricsEnabled() bool {
	return c.Observability != nil && c.Observability.Metrics != nil && c.Observability.Metrics.Enabled
}

// MetricsPath returns the metrics exposition path, defaulting to "/metrics".
func (c *Config) MetricsPath() string {
	if c.MetricsEnabled() && c.Observability.Metrics.Path != "" {
		return c.Observability.Metrics.Path
	}
	return "/metrics"
}

// TracingEnabled reports whether OTLP tracing is configured on.
func (c *Config) TracingEnabled() bool {
	return c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
