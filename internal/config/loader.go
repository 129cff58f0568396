// Package config loads bridge configuration through viper and decodes it
// into typed structs with mapstructure.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory and the service in logs.
	AppName = "agentbridge"

	// EnvPrefix is prepended to every recognized environment variable.
	EnvPrefix = "AGENTBRIDGE_"

	// writeTimeoutSlack is added to the agent timeout when no explicit
	// write timeout is configured.
	writeTimeoutSlack = 10 * time.Second
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// ErrMissingAPIKey is returned by Validate when no shared secret is configured.
var ErrMissingAPIKey = errors.New("API_KEY is required")

// envBinding maps a config key to its unprefixed env name. legacy marks
// keys whose bare name is recognized alongside the prefixed one.
type envBinding struct {
	key    string
	name   string
	legacy bool
}

var envBindings = []envBinding{
	{"server.host", "BIND_HOST", true},
	{"server.port", "PORT", true},
	{"server.read_timeout", "READ_TIMEOUT", false},
	{"server.write_timeout", "WRITE_TIMEOUT", false},
	{"server.idle_timeout", "IDLE_TIMEOUT", false},
	{"server.shutdown_timeout", "SHUTDOWN_TIMEOUT", false},

	{"auth.api_key", "API_KEY", true},

	{"agent.id", "AGENT", true},
	{"agent.timeout", "TIMEOUT", true},
	{"agent.cli_command", "CLI_COMMAND", true},

	{"rate_limit.max", "RATE_LIMIT_MAX", true},
	{"rate_limit.window_ms", "RATE_LIMIT_WINDOW_MS", true},
	{"rate_limit.sweep_interval", "RATE_LIMIT_SWEEP_INTERVAL", false},

	{"limits.max_message_length", "MAX_MESSAGE_LENGTH", true},

	{"logging.level", "LOG_LEVEL", false},

	{"metrics.enabled", "METRICS_ENABLED", false},
	{"metrics.port", "METRICS_PORT", false},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 18790)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.api_key", "")

	v.SetDefault("agent.id", "main")
	v.SetDefault("agent.timeout", 120)
	v.SetDefault("agent.cli_command", "clawdbot")

	v.SetDefault("rate_limit.max", 10)
	v.SetDefault("rate_limit.window_ms", 60000)
	v.SetDefault("rate_limit.sweep_interval", "5m")

	v.SetDefault("limits.max_message_length", 4000)

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
}

// BindEnv binds each key to its prefixed env name and, where one exists,
// the bare legacy name. The prefixed name wins when both are set.
func BindEnv(v *viper.Viper) error {
	for _, b := range envBindings {
		names := []string{EnvPrefix + b.name}
		if b.legacy {
			names = append(names, b.name)
		}
		if err := v.BindEnv(append([]string{b.key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", b.key, err)
		}
	}
	return nil
}

// EnvNames lists the env variables recognized for key, prefixed name first.
func EnvNames(key string) []string {
	for _, b := range envBindings {
		if b.key != key {
			continue
		}
		if b.legacy {
			return []string{EnvPrefix + b.name, b.name}
		}
		return []string{EnvPrefix + b.name}
	}
	return nil
}

// Load decodes v into a Config, derives dependent values and validates it.
// The result is also stored for GetConfig.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setConfig(cfg)
	return cfg, nil
}

// Decode unmarshals v into a Config without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Auth.APIKey = strings.TrimSpace(cfg.Auth.APIKey)
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = cfg.Agent.TimeoutDuration() + writeTimeoutSlack
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Auth.APIKey == "":
		return ErrMissingAPIKey
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Agent.ID == "":
		return errors.New("agent id must not be empty")
	case strings.TrimSpace(c.Agent.CLICommand) == "":
		return errors.New("agent cli command must not be empty")
	case c.Agent.Timeout <= 0:
		return fmt.Errorf("agent timeout must be positive, got %d", c.Agent.Timeout)
	case c.RateLimit.Max <= 0:
		return fmt.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	case c.RateLimit.WindowMS <= 0:
		return fmt.Errorf("rate limit window must be positive, got %dms", c.RateLimit.WindowMS)
	case c.Limits.MaxMessageLength <= 0:
		return fmt.Errorf("max message length must be positive, got %d", c.Limits.MaxMessageLength)
	}
	return nil
}

// GetConfig returns the last successfully loaded configuration.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG config directory for the bridge.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
