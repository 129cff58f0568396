package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/output"
)

func doctorViper(t *testing.T, settings map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range settings {
		v.Set(k, val)
	}
	return v
}

func findCheck(t *testing.T, report *output.Report, name string) output.Check {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "check not found", "%s", name)
	return output.Check{}
}

func foundAt(path string) func(string) (string, error) {
	return func(string) (string, error) { return path, nil }
}

func notFound(string) (string, error) { return "", errors.New("not found") }

func TestRunDoctor_Healthy(t *testing.T) {
	v := doctorViper(t, map[string]any{"auth.api_key": "secret-value"})

	report := runDoctor(v, foundAt("/usr/local/bin/clawdbot"))

	assert.True(t, report.Healthy())
	assert.Equal(t, output.StatusOK, findCheck(t, report, "agent cli").Status)
	apiKey := findCheck(t, report, "api key")
	assert.Equal(t, output.StatusOK, apiKey.Status)
	assert.NotContains(t, apiKey.Detail, "secret-value")
	assert.Equal(t, output.StatusOK, findCheck(t, report, "bind address").Status)
}

func TestRunDoctor_MissingSecretAndCLI(t *testing.T) {
	v := doctorViper(t, nil)

	report := runDoctor(v, notFound)

	assert.False(t, report.Healthy())
	assert.Equal(t, output.StatusFail, findCheck(t, report, "api key").Status)
	assert.Equal(t, output.StatusOK, findCheck(t, report, "configuration").Status)
	assert.Equal(t, output.StatusFail, findCheck(t, report, "agent cli").Status)
}

func TestRunDoctor_WildcardBindWarns(t *testing.T) {
	v := doctorViper(t, map[string]any{
		"auth.api_key": "k",
		"server.host":  "0.0.0.0",
	})

	report := runDoctor(v, foundAt("/bin/clawdbot"))

	assert.True(t, report.Healthy())
	assert.Equal(t, output.StatusWarn, findCheck(t, report, "bind address").Status)
}

func TestRunDoctor_InvalidConfig(t *testing.T) {
	v := doctorViper(t, map[string]any{
		"auth.api_key":   "k",
		"rate_limit.max": 0,
	})

	report := runDoctor(v, foundAt("/bin/clawdbot"))
	assert.Equal(t, output.StatusFail, findCheck(t, report, "configuration").Status)
}

func TestIsWildcardHost(t *testing.T) {
	assert.True(t, isWildcardHost("0.0.0.0"))
	assert.True(t, isWildcardHost("::"))
	assert.False(t, isWildcardHost("127.0.0.1"))
	assert.False(t, isWildcardHost("localhost"))
}
