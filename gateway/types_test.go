package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/errors"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no addr", func(c *Config) { c.Addr = "" }, true},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, true},
		{"rate without burst", func(c *Config) { c.Burst = 0 }, true},
		{"unlimited without burst", func(c *Config) { c.RateLimit = 0; c.Burst = 0 }, false},
		{"negative body", func(c *Config) { c.MaxRequestSize = -1 }, true},
		{"huge body", func(c *Config) { c.MaxRequestSize = 200 * 1024 * 1024 }, true},
		{"cors without origins", func(c *Config) { c.EnableCORS = true }, true},
		{"cors with origins", func(c *Config) { c.EnableCORS = true; c.CORSOrigins = []string{"*"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_ValidateDefaultsBodyLimit(t *testing.T) {
	cfg := Config{Addr: ":0"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(1024*1024), cfg.MaxRequestSize)
}
