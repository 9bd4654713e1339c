package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Fifo.Capacity)
	assert.Equal(t, 40, cfg.Pipeline.Capacity)
	assert.Equal(t, DefaultValues(), cfg.Pipeline.Values())
}

func TestLoader_NoLayers(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_JSONLayer(t *testing.T) {
	path := writeFile(t, "ringpipe.json", `{
		"pipeline": {"timer_period_ms": 10, "emergency_threshold": 50},
		"nats": {"enabled": true, "subject": "test.batches"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	want := Default()
	want.Pipeline.TimerPeriodMS = 10
	want.Pipeline.EmergencyThreshold = 50
	want.NATS.Enabled = true
	want.NATS.Subject = "test.batches"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_YAMLLayersMerge(t *testing.T) {
	base := writeFile(t, "base.yaml", "fifo:\n  capacity: 64\ngateway:\n  addr: \":9000\"\n")
	override := writeFile(t, "override.yml", "fifo:\n  capacity: 128\nmetrics:\n  enabled: false\n")

	l := NewLoader()
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Fifo.Capacity)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port, "untouched fields keep defaults")
}

func TestLoader_SchemaViolation(t *testing.T) {
	tests := map[string]string{
		"threshold out of range": `{"pipeline": {"emergency_threshold": 150}}`,
		"unknown section":        `{"storage": {}}`,
		"wrong type":             `{"fifo": {"capacity": "big"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader().LoadFile(writeFile(t, "bad.json", body))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestLoader_RejectsUnsupportedFiles(t *testing.T) {
	_, err := NewLoader().LoadFile(writeFile(t, "ringpipe.toml", "a = 1"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewLoader().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewLoader().LoadFile(writeFile(t, "broken.json", "{"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("RINGPIPE_PIPELINE_EMERGENCY_THRESHOLD", "60")
	t.Setenv("RINGPIPE_NATS_URL", "nats://example:4222")
	t.Setenv("RINGPIPE_GATEWAY_RATE_LIMIT", "5.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Pipeline.EmergencyThreshold)
	assert.Equal(t, "nats://example:4222", cfg.NATS.URL)
	assert.Equal(t, 5.5, cfg.Gateway.RateLimit)
	assert.Equal(t, uint32(300), cfg.Pipeline.MaxRandom)
}

func TestLoader_EnvOverrideValidated(t *testing.T) {
	t.Setenv("RINGPIPE_PIPELINE_EMERGENCY_THRESHOLD", "101")
	_, err := NewLoader().Load()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	t.Setenv("RINGPIPE_PIPELINE_EMERGENCY_THRESHOLD", "lots")
	_, err = NewLoader().Load()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]func(*Config){
		"fifo capacity":     func(c *Config) { c.Fifo.Capacity = 0 },
		"pipeline capacity": func(c *Config) { c.Pipeline.Capacity = 3 },
		"workers":           func(c *Config) { c.Pipeline.Workers = 0 },
		"max random":        func(c *Config) { c.Pipeline.MaxRandom = 0 },
		"gateway addr":      func(c *Config) { c.Gateway.Addr = "" },
		"metrics port":      func(c *Config) { c.Metrics.Port = 70000 },
		"nats subject":      func(c *Config) { c.NATS.Enabled = true; c.NATS.Subject = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)
	assert.Equal(t, Default(), sc.Get())

	cfg := Default()
	cfg.Fifo.Capacity = 99
	require.NoError(t, sc.Update(cfg))
	assert.Equal(t, 99, sc.Get().Fifo.Capacity)

	// returned copies are detached
	got := sc.Get()
	got.Fifo.Capacity = 1
	assert.Equal(t, 99, sc.Get().Fifo.Capacity)

	bad := Default()
	bad.Pipeline.Workers = 0
	assert.Error(t, sc.Update(bad))
	assert.Error(t, sc.Update(nil))
	assert.Equal(t, 99, sc.Get().Fifo.Capacity)
}

func TestConfig_String(t *testing.T) {
	assert.Contains(t, Default().String(), `"timer_period_ms": 500`)
}
