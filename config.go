package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jongalloway/travel-booking-agents/policy"
	"github.com/jongalloway/travel-booking-agents/service/event"
	"github.com/jongalloway/travel-booking-agents/service/meta"
	"github.com/jongalloway/travel-booking-agents/service/orchestrator"
	"github.com/jongalloway/travel-booking-agents/service/worker"
	"github.com/viant/afs"
)

// Config is the serialisable service configuration. Zero-valued fields
// inherit package defaults.
type Config struct {
	Server       ServerConfig        `json:"server" yaml:"server"`
	Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`
	Workers      worker.Config       `json:"workers" yaml:"workers"`
	Tools        policy.Config       `json:"tools" yaml:"tools"`
	Log          LogConfig           `json:"log" yaml:"log"`
	Tracing      TracingConfig       `json:"tracing" yaml:"tracing"`
	// EventBuffer is the number of progress events held per run before the
	// orchestrator blocks on a slow consumer.
	EventBuffer int `json:"eventBuffer" yaml:"eventBuffer"`
}

type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	// Output is a trace file path; empty writes to stdout.
	Output string `json:"output" yaml:"output"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:       ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Orchestrator: *orchestrator.DefaultConfig(),
		Log:          LogConfig{Level: "info", Format: "simple"},
		Tracing:      TracingConfig{ServiceName: "travel-booking"},
		EventBuffer:  event.DefaultBuffer,
	}
}

// Init fills unset fields with defaults.
func (c *Config) Init() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaults.EventBuffer
	}
	c.Orchestrator.Init()
}

// Validate returns an error describing the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("eventBuffer must not be negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdownTimeout must not be negative")
	}
	for name, latency := range c.Workers.Latency {
		if latency < 0 {
			return fmt.Errorf("workers.latency.%v must not be negative", name)
		}
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML configuration from URL (any viant/afs location),
// expanding ${env.KEY} expressions, on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New(), "").Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	ret.Init()
	return ret, nil
}
