package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/firestorm/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
firestorm:
  log:
    level: "debug"
    format: "json"
  metrics:
    enabled: true
    listen: "127.0.0.1:9999"
  decoder:
    min_layers: 16
  flow:
    fragments:
      timeout: "45s"
      max_frags_per_ip: 500
      rate_limit_window: "5s"
    tcp:
      timeout: "2m"
  pipeline:
    filter:
      - {op: 0x28, jt: 0, jf: 0, k: 12}
      - {op: 0x6, jt: 0, jf: 0, k: 262144}
    sink:
      type: "console"
      format: "yaml"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.Listen)
	assert.Equal(t, 16, cfg.Decoder.MinLayers)
	assert.Equal(t, 45*time.Second, cfg.Flow.Fragments.Timeout)
	assert.Equal(t, 500, cfg.Flow.Fragments.MaxFragsPerIP)
	assert.Equal(t, 5*time.Second, cfg.Flow.Fragments.RateLimitWindow)
	assert.Equal(t, 2*time.Minute, cfg.Flow.TCP.Timeout)
	require.Len(t, cfg.Pipeline.Filter, 2)
	assert.Equal(t, BPFInstruction{Op: 0x28, K: 12}, cfg.Pipeline.Filter[0])
	assert.Equal(t, "yaml", cfg.Pipeline.Sink.Format)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, DefaultMinLayers, cfg.Decoder.MinLayers)
	assert.Equal(t, DefaultFragmentTimeout, cfg.Flow.Fragments.Timeout)
	assert.Equal(t, DefaultRateLimitWindow, cfg.Flow.Fragments.RateLimitWindow)
	assert.Equal(t, DefaultTCPTimeout, cfg.Flow.TCP.Timeout)
	assert.Equal(t, "console", cfg.Pipeline.Sink.Type)
	assert.Equal(t, "json", cfg.Pipeline.Sink.Format)
	assert.Empty(t, cfg.Pipeline.Filter)
}

func TestLoadEnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
firestorm:
  log:
    level: "info"
`)
	t.Setenv("FIRESTORM_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "firestorm:\n  log:\n    level: \"verbose\"\n"},
		{"log format", "firestorm:\n  log:\n    format: \"xml\"\n"},
		{"sink type", "firestorm:\n  pipeline:\n    sink:\n      type: \"syslog\"\n"},
		{"console format", "firestorm:\n  pipeline:\n    sink:\n      format: \"csv\"\n"},
		{"kafka without options", "firestorm:\n  pipeline:\n    sink:\n      type: \"kafka\"\n"},
		{"negative rate limit", "firestorm:\n  flow:\n    fragments:\n      max_frags_per_ip: -1\n"},
		{"filter and filter_expr", "firestorm:\n  pipeline:\n    filter_expr: \"udp\"\n    filter:\n      - {op: 6, k: 65535}\n"},
		{"file output without path", "firestorm:\n  log:\n    outputs:\n      file:\n        enabled: true\n        path: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid), "expected ErrConfigInvalid, got %v", err)
		})
	}
}

func TestValidateAppliesMinLayersDefault(t *testing.T) {
	cfg := GlobalConfig{
		Log:      LogConfig{Level: "info", Format: "text"},
		Flow:     FlowConfig{Fragments: FragmentsConfig{Timeout: time.Second}, TCP: TCPFlowConfig{Timeout: time.Second}},
		Pipeline: PipelineConfig{Sink: SinkConfig{Type: "console", Format: "json"}},
	}
	require.NoError(t, cfg.ValidateAndApplyDefaults())
	assert.Equal(t, DefaultMinLayers, cfg.Decoder.MinLayers)
}
