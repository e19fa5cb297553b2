// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Backend() BackendConfig
	Graph() GraphConfig
	Layout() LayoutConfig
	Snapshot() SnapshotConfig

	// Backend Setters
	SetBackendBaseURL(string)
	SetBackendGroup(string)
	SetBackendRequestTimeout(d time.Duration)

	// Layout Setters
	SetLayoutStrategy(string)
	SetLayoutDirection(string)
}

// Config holds the entire application configuration. Access goes through
// the Interface getters so consumers can be handed a mock in tests.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BackendCfg  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	GraphCfg    GraphConfig    `mapstructure:"graph" yaml:"graph"`
	LayoutCfg   LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	SnapshotCfg SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Backend() BackendConfig   { return c.BackendCfg }
func (c *Config) Graph() GraphConfig       { return c.GraphCfg }
func (c *Config) Layout() LayoutConfig     { return c.LayoutCfg }
func (c *Config) Snapshot() SnapshotConfig { return c.SnapshotCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBackendBaseURL(u string) { c.BackendCfg.BaseURL = u }
func (c *Config) SetBackendGroup(g string)   { c.BackendCfg.Group = g }
func (c *Config) SetBackendRequestTimeout(d time.Duration) {
	c.BackendCfg.RequestTimeout = d
}

func (c *Config) SetLayoutStrategy(s string)  { c.LayoutCfg.Strategy = s }
func (c *Config) SetLayoutDirection(d string) { c.LayoutCfg.Direction = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BackendConfig holds the connection details for the risk-graph API server.
type BackendConfig struct {
	BaseURL        string            `mapstructure:"base_url" yaml:"base_url"`
	Group          string            `mapstructure:"group" yaml:"group"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RateLimit is the sustained request rate (requests/sec) against the backend.
	RateLimit float64           `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int               `mapstructure:"rate_burst" yaml:"rate_burst"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers"`
}

// GraphConfig tunes the in-memory graph session behavior.
type GraphConfig struct {
	// CanvasMin/CanvasMax bound the random placement region for new nodes.
	CanvasMin float64 `mapstructure:"canvas_min" yaml:"canvas_min"`
	CanvasMax float64 `mapstructure:"canvas_max" yaml:"canvas_max"`
	// MaxActions caps the action list length per node or hyperedge.
	MaxActions int `mapstructure:"max_actions" yaml:"max_actions"`
}

// LayoutConfig selects and tunes the layout strategy.
type LayoutConfig struct {
	Strategy  string `mapstructure:"strategy" yaml:"strategy"`   // "dag" or "force"
	Direction string `mapstructure:"direction" yaml:"direction"` // "LR", "RL", "TB", "BT"
	// Dimensions assumed for each node box during layered ranking.
	NodeWidth  float64 `mapstructure:"node_width" yaml:"node_width"`
	NodeHeight float64 `mapstructure:"node_height" yaml:"node_height"`
}

// SnapshotConfig holds the optional Postgres snapshot store settings.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "hypergraph-cli")
	v.SetDefault("logger.log_file", "hypergraph.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Backend --
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.group", "default")
	v.SetDefault("backend.request_timeout", "5s")
	v.SetDefault("backend.rate_limit", 20.0)
	v.SetDefault("backend.rate_burst", 10)

	// -- Graph --
	v.SetDefault("graph.canvas_min", 20.0)
	v.SetDefault("graph.canvas_max", 400.0)
	v.SetDefault("graph.max_actions", 10)

	// -- Layout --
	v.SetDefault("layout.strategy", "dag")
	v.SetDefault("layout.direction", "LR")
	v.SetDefault("layout.node_width", 80.0)
	v.SetDefault("layout.node_height", 10.0)

	// -- Snapshot --
	v.SetDefault("snapshot.enabled", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("snapshot.url", "HYPERGRAPH_SNAPSHOT_URL")

	SetDefaults(v)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the rest of the system
// cannot recover from at runtime.
func (c *Config) Validate() error {
	if c.BackendCfg.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.BackendCfg.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be positive, got %s", c.BackendCfg.RequestTimeout)
	}
	if c.GraphCfg.MaxActions <= 0 {
		return fmt.Errorf("graph.max_actions must be positive, got %d", c.GraphCfg.MaxActions)
	}
	if c.GraphCfg.CanvasMin >= c.GraphCfg.CanvasMax {
		return fmt.Errorf("graph canvas bounds invalid: min %v >= max %v", c.GraphCfg.CanvasMin, c.GraphCfg.CanvasMax)
	}
	switch c.LayoutCfg.Strategy {
	case "dag", "force":
	default:
		return fmt.Errorf("unknown layout strategy %q", c.LayoutCfg.Strategy)
	}
	switch c.LayoutCfg.Direction {
	case "LR", "RL", "TB", "BT":
	default:
		return fmt.Errorf("unknown layout direction %q", c.LayoutCfg.Direction)
	}
	return nil
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".hypergraph"), nil
}

var _ Interface = (*Config)(nil)
