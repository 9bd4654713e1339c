package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/c360/ringpipe/errors"
)

// Config represents the complete daemon configuration
type Config struct {
	Fifo     FifoConfig     `json:"fifo" yaml:"fifo" envconfig:"FIFO"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" envconfig:"PIPELINE"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway" envconfig:"GATEWAY"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" envconfig:"METRICS"`
	NATS     NATSConfig     `json:"nats" yaml:"nats" envconfig:"NATS"`
}

// FifoConfig sizes the multi-party byte channel
type FifoConfig struct {
	Capacity int `json:"capacity" yaml:"capacity" split_words:"true"`
}

// PipelineConfig sizes the timer-driven pipeline and sets its initial tunables
type PipelineConfig struct {
	Capacity           int    `json:"capacity" yaml:"capacity" split_words:"true"`
	Workers            int    `json:"workers" yaml:"workers" split_words:"true"`
	QueueSize          int    `json:"queue_size" yaml:"queue_size" split_words:"true"`
	TimerPeriodMS      uint32 `json:"timer_period_ms" yaml:"timer_period_ms" split_words:"true"`
	EmergencyThreshold int    `json:"emergency_threshold" yaml:"emergency_threshold" split_words:"true"`
	MaxRandom          uint32 `json:"max_random" yaml:"max_random" split_words:"true"`
}

// Values returns the pipeline's initial tunables
func (p PipelineConfig) Values() Values {
	return Values{
		TimerPeriodMS:      p.TimerPeriodMS,
		EmergencyThreshold: p.EmergencyThreshold,
		MaxRandom:          p.MaxRandom,
	}
}

// GatewayConfig defines the HTTP/WebSocket front end
type GatewayConfig struct {
	Addr      string  `json:"addr" yaml:"addr" split_words:"true"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" split_words:"true"`
	Burst     int     `json:"burst" yaml:"burst" split_words:"true"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" split_words:"true"`
	Port    int    `json:"port" yaml:"port" split_words:"true"`
	Path    string `json:"path" yaml:"path" split_words:"true"`
}

// NATSConfig defines the optional batch relay
type NATSConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" split_words:"true"`
	URL           string `json:"url" yaml:"url" split_words:"true"`
	Subject       string `json:"subject" yaml:"subject" split_words:"true"`
	MaxReconnects int    `json:"max_reconnects" yaml:"max_reconnects" split_words:"true"`
	// Stream, when set, makes the relay publish through JetStream
	Stream        string `json:"stream,omitempty" yaml:"stream,omitempty" split_words:"true"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Fifo: FifoConfig{Capacity: 50},
		Pipeline: PipelineConfig{
			Capacity:           40,
			Workers:            2,
			QueueSize:          16,
			TimerPeriodMS:      DefaultTimerPeriodMS,
			EmergencyThreshold: DefaultEmergencyThreshold,
			MaxRandom:          DefaultMaxRandom,
		},
		Gateway: GatewayConfig{
			Addr:      ":8080",
			RateLimit: 100,
			Burst:     200,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			Subject:       "ringpipe.batches",
			MaxReconnects: -1,
		},
	}
}

// Validate checks cross-field constraints the schema cannot express
func (c *Config) Validate() error {
	var problems []string

	if c.Fifo.Capacity < 1 {
		problems = append(problems, "fifo.capacity must be at least 1")
	}
	if c.Pipeline.Capacity < 4 {
		problems = append(problems, "pipeline.capacity must hold at least one 4-byte value")
	}
	if c.Pipeline.Workers < 1 {
		problems = append(problems, "pipeline.workers must be at least 1")
	}
	if err := c.Pipeline.Values().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Gateway.Addr == "" {
		problems = append(problems, "gateway.addr is required")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		problems = append(problems, fmt.Sprintf("metrics.port %d out of range", c.Metrics.Port))
	}
	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		problems = append(problems, "nats.url and nats.subject are required when nats is enabled")
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "check constraints")
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	copied := *c
	return &copied
}

// String renders the configuration as indented JSON
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}
