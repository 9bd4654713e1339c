package gateway

import (
	"fmt"

	"github.com/c360/ringpipe/errors"
)

// Config holds the HTTP gateway settings
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `json:"addr"`

	// RateLimit is the sustained requests per second across all routes; 0 disables limiting
	RateLimit float64 `json:"rate_limit"`

	// Burst is the number of requests allowed above RateLimit at once
	Burst int `json:"burst"`

	// MaxRequestSize limits request bodies in bytes (default 1MB)
	MaxRequestSize int64 `json:"max_request_size,omitempty"`

	// EnableCORS adds CORS headers for CORSOrigins
	EnableCORS  bool     `json:"enable_cors"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// Validate checks c and fills in the default body limit
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "addr cannot be empty")
	}
	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "rate_limit cannot be negative")
	}
	if c.RateLimit > 0 && c.Burst < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "burst must be positive when rate_limit is set")
	}
	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "max_request_size cannot be negative")
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = 1024 * 1024
	}
	if c.MaxRequestSize > 100*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("max_request_size %d exceeds 100MB", c.MaxRequestSize))
	}
	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"enable_cors requires cors_origins")
	}
	return nil
}

// DefaultConfig returns the gateway defaults
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		RateLimit:      100,
		Burst:          200,
		MaxRequestSize: 1024 * 1024,
	}
}
