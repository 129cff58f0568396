package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	require.NoError(t, BindEnv(v))
	return v
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range envBindings {
		for _, name := range EnvNames(b.key) {
			if _, ok := os.LookupEnv(name); ok {
				t.Setenv(name, "")
				require.NoError(t, os.Unsetenv(name))
			}
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "secret")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 18790, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 130*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "secret", cfg.Auth.APIKey)
		assert.Equal(t, "main", cfg.Agent.ID)
		assert.Equal(t, 120, cfg.Agent.Timeout)
		assert.Equal(t, "clawdbot", cfg.Agent.CLICommand)

		assert.Equal(t, 10, cfg.RateLimit.Max)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window())
		assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)
		assert.Equal(t, 4000, cfg.Limits.MaxMessageLength)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("LegacyEnvNames", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "  padded  ")
		t.Setenv("BIND_HOST", "0.0.0.0")
		t.Setenv("PORT", "9999")
		t.Setenv("AGENT", "helper")
		t.Setenv("TIMEOUT", "30")
		t.Setenv("CLI_COMMAND", "/opt/bin/agent")
		t.Setenv("RATE_LIMIT_MAX", "3")
		t.Setenv("RATE_LIMIT_WINDOW_MS", "1500")
		t.Setenv("MAX_MESSAGE_LENGTH", "100")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, "padded", cfg.Auth.APIKey)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "helper", cfg.Agent.ID)
		assert.Equal(t, 30*time.Second, cfg.Agent.TimeoutDuration())
		assert.Equal(t, 40*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, "/opt/bin/agent", cfg.Agent.CLICommand)
		assert.Equal(t, 3, cfg.RateLimit.Max)
		assert.Equal(t, 1500*time.Millisecond, cfg.RateLimit.Window())
		assert.Equal(t, 100, cfg.Limits.MaxMessageLength)
	})

	t.Run("PrefixedEnvWins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "legacy")
		t.Setenv("AGENTBRIDGE_API_KEY", "prefixed")
		t.Setenv("AGENTBRIDGE_WRITE_TIMEOUT", "45s")
		t.Setenv("AGENTBRIDGE_METRICS_ENABLED", "false")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, "prefixed", cfg.Auth.APIKey)
		assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  api_key: from-file
rate_limit:
  max: 2
  sweep_interval: 30s
`), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Auth.APIKey)
		assert.Equal(t, 2, cfg.RateLimit.Max)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.SweepInterval)
	})

	t.Run("MissingSecret", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(newViper(t))
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 18790},
			Auth:      AuthConfig{APIKey: "k"},
			Agent:     AgentConfig{ID: "main", Timeout: 120, CLICommand: "clawdbot"},
			RateLimit: RateLimitConfig{Max: 10, WindowMS: 60000},
			Limits:    LimitsConfig{MaxMessageLength: 4000},
		}
	}
	require.NoError(t, valid().Validate())

	mutations := map[string]func(*Config){
		"port":       func(c *Config) { c.Server.Port = 0 },
		"agent id":   func(c *Config) { c.Agent.ID = "" },
		"command":    func(c *Config) { c.Agent.CLICommand = " " },
		"timeout":    func(c *Config) { c.Agent.Timeout = 0 },
		"max":        func(c *Config) { c.RateLimit.Max = -1 },
		"window":     func(c *Config) { c.RateLimit.WindowMS = 0 },
		"msg length": func(c *Config) { c.Limits.MaxMessageLength = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvNames(t *testing.T) {
	assert.Equal(t, []string{"AGENTBRIDGE_API_KEY", "API_KEY"}, EnvNames("auth.api_key"))
	assert.Equal(t, []string{"AGENTBRIDGE_LOG_LEVEL"}, EnvNames("logging.level"))
	assert.Nil(t, EnvNames("nope"))
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := DefaultConfigPath()
	if path != "" {
		assert.Equal(t, "config.yaml", filepath.Base(path))
		assert.Equal(t, AppName, filepath.Base(filepath.Dir(path)))
	}
}
