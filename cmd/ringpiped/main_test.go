package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, validateFlags(cfg))
}

func TestParseFlags_DebugOverridesLevel(t *testing.T) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-debug", "-log-level=error"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("RINGPIPE_LOG_FORMAT", "text")
	t.Setenv("RINGPIPE_SHUTDOWN_TIMEOUT", "3s")

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestValidateFlags(t *testing.T) {
	base := CLIConfig{LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}

	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr bool
	}{
		{"valid", func(*CLIConfig) {}, false},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "trace" }, true},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }, true},
		{"missing file", func(c *CLIConfig) { c.ConfigPath = "/nonexistent/ringpipe.json" }, true},
		{"zero timeout", func(c *CLIConfig) { c.ShutdownTimeout = 0 }, true},
		{"version skips checks", func(c *CLIConfig) { c.ShowVersion = true; c.LogLevel = "trace" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := validateFlags(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetupLogger_BaseAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("visible", "endpoint", "fifo")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, Version, entry["version"])
	assert.EqualValues(t, os.Getpid(), entry["pid"])
	assert.Equal(t, "fifo", entry["endpoint"])
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ringpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  timer_period_ms: 100\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cfg.Pipeline.TimerPeriodMS)
	assert.Equal(t, 50, cfg.Fifo.Capacity)
	assert.Equal(t, 40, cfg.Pipeline.Capacity)
}

func TestNewDaemon_WiresComponents(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	cfg.NATS.Enabled = true

	d, err := newDaemon(cfg, setupLogger(io.Discard, "error", "json"))
	require.NoError(t, err)

	assert.NotNil(t, d.metricsServer)
	assert.NotNil(t, d.relay)
	assert.Equal(t, 50, d.fifo.Capacity())
	assert.Equal(t, 40, d.pipeline.Capacity())

	d.monitor.Refresh(context.Background())
	assert.Equal(t, 4, d.monitor.Count())
	fifoStatus, ok := d.monitor.Get("fifo")
	require.True(t, ok)
	assert.True(t, fifoStatus.IsHealthy())
}
