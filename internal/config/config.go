package config

import "time"

// Config is the complete bridge configuration. It is assembled from flags,
// environment, an optional YAML file and defaults, in that precedence.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Agent     AgentConfig     `mapstructure:"agent"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds the shared secret callers present as a bearer token.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig describes how the agent CLI is invoked.
type AgentConfig struct {
	ID string `mapstructure:"id"`

	// Timeout is the per-invocation limit in whole seconds. It is passed to
	// the CLI and enforced locally.
	Timeout int `mapstructure:"timeout"`

	CLICommand string `mapstructure:"cli_command"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (a AgentConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// RateLimitConfig configures the per-client fixed window.
type RateLimitConfig struct {
	Max           int           `mapstructure:"max"`
	WindowMS      int           `mapstructure:"window_ms"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Window returns the window length.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

// LimitsConfig bounds request input.
type LimitsConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus listener. The API port never serves metrics.
	Port int `mapstructure:"port"`
}
