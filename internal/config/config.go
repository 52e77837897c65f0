// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/firestorm/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `firestorm:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Flow     FlowConfig     `mapstructure:"flow"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`       // debug / info / warn / error
	Format     string           `mapstructure:"format"`      // text / json
	Pattern    string           `mapstructure:"pattern"`     // text format only
	TimeFormat string           `mapstructure:"time_format"` // text format only
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Decoder ───

// DecoderConfig contains decode engine settings.
type DecoderConfig struct {
	// MinLayers is the per-packet layer budget the arena is sized for.
	MinLayers int `mapstructure:"min_layers"`
}

// ─── Flow tracking ───

// FlowConfig contains flow tracker settings.
type FlowConfig struct {
	Fragments FragmentsConfig `mapstructure:"fragments"`
	TCP       TCPFlowConfig   `mapstructure:"tcp"`
}

// FragmentsConfig configures IPv4 fragment bookkeeping.
type FragmentsConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxFragsPerIP   int           `mapstructure:"max_frags_per_ip"` // 0 = no rate limit
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// TCPFlowConfig configures the TCP connection table.
type TCPFlowConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `firestorm: ...`.
type configRoot struct {
	Firestorm GlobalConfig `mapstructure:"firestorm"`
}

// Load loads configuration from file. An empty path yields the defaults.
// Env vars use the FIRESTORM_ prefix (e.g. FIRESTORM_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "firestorm.log.level" → env "FIRESTORM_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Firestorm

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "firestorm." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("firestorm.log.level", "info")
	v.SetDefault("firestorm.log.format", "text")
	v.SetDefault("firestorm.log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("firestorm.log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("firestorm.log.outputs.file.enabled", false)
	v.SetDefault("firestorm.log.outputs.file.path", "/var/log/firestorm/firestorm.log")
	v.SetDefault("firestorm.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("firestorm.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("firestorm.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("firestorm.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("firestorm.metrics.enabled", false)
	v.SetDefault("firestorm.metrics.listen", ":9091")
	v.SetDefault("firestorm.metrics.path", "/metrics")

	// Decoder defaults
	v.SetDefault("firestorm.decoder.min_layers", DefaultMinLayers)

	// Flow tracker defaults
	v.SetDefault("firestorm.flow.fragments.timeout", DefaultFragmentTimeout)
	v.SetDefault("firestorm.flow.fragments.max_frags_per_ip", 0)
	v.SetDefault("firestorm.flow.fragments.rate_limit_window", DefaultRateLimitWindow)
	v.SetDefault("firestorm.flow.tcp.timeout", DefaultTCPTimeout)

	// Pipeline defaults
	v.SetDefault("firestorm.pipeline.sink.type", "console")
	v.SetDefault("firestorm.pipeline.sink.format", "json")
}

// DefaultMinLayers is the layer depth every packet arena supports without growth.
const DefaultMinLayers = 8

// Flow table defaults.
const (
	DefaultFragmentTimeout = 30 * time.Second
	DefaultRateLimitWindow = 10 * time.Second
	DefaultTCPTimeout      = 5 * time.Minute
)

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Decoder ──
	if cfg.Decoder.MinLayers <= 0 {
		cfg.Decoder.MinLayers = DefaultMinLayers
	}

	// ── Flow trackers ──
	if cfg.Flow.Fragments.Timeout <= 0 {
		return fmt.Errorf("%w: flow.fragments.timeout must be positive", core.ErrConfigInvalid)
	}
	if cfg.Flow.Fragments.MaxFragsPerIP < 0 {
		return fmt.Errorf("%w: flow.fragments.max_frags_per_ip must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Flow.TCP.Timeout <= 0 {
		return fmt.Errorf("%w: flow.tcp.timeout must be positive", core.ErrConfigInvalid)
	}

	// ── Pipeline ──
	return cfg.Pipeline.Validate()
}
