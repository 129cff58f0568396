package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/output"
	"github.com/agentbridge/agentbridge/internal/observability"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Check configuration, the shared secret and the agent CLI, and report anything that would stop the bridge from serving.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(doctorFormat)
		if err != nil {
			return err
		}

		report := runDoctor(viper.GetViper(), exec.LookPath)

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(rendered, "\n"))

		if !report.Healthy() {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Doctor found problems", nil)
		}
		return nil
	},
}

// runDoctor builds the diagnostic report. lookPath resolves the agent CLI.
func runDoctor(v *viper.Viper, lookPath func(string) (string, error)) *output.Report {
	report := &output.Report{}

	report.Add("runtime", output.StatusOK, fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))

	version := crucible.GetVersion()
	if version.Gofulmen != "" {
		report.Add("gofulmen", output.StatusOK, version.Gofulmen)
	} else {
		report.Add("gofulmen", output.StatusWarn, "version unavailable")
	}

	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			report.Add("config file", output.StatusOK, used)
		} else {
			report.Add("config file", output.StatusWarn, fmt.Sprintf("%s (not readable)", used))
		}
	} else {
		report.Add("config file", output.StatusOK, "none; using environment and defaults")
	}

	cfg, err := config.Decode(v)
	if err != nil {
		report.Add("configuration", output.StatusFail, err.Error())
		return report
	}

	if cfg.Auth.APIKey == "" {
		report.Add("api key", output.StatusFail, "not set ("+strings.Join(config.EnvNames("auth.api_key"), " or ")+")")
	} else {
		report.Add("api key", output.StatusOK, fmt.Sprintf("set (%d chars)", len(cfg.Auth.APIKey)))
	}

	if err := cfg.Validate(); err != nil && !errors.Is(err, config.ErrMissingAPIKey) {
		report.Add("configuration", output.StatusFail, err.Error())
	} else {
		report.Add("configuration", output.StatusOK, "valid")
	}

	if path, err := lookPath(cfg.Agent.CLICommand); err != nil {
		report.Add("agent cli", output.StatusFail, fmt.Sprintf("%s not found on PATH", cfg.Agent.CLICommand))
	} else {
		report.Add("agent cli", output.StatusOK, path)
	}

	bind := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if isWildcardHost(cfg.Server.Host) {
		report.Add("bind address", output.StatusWarn, bind+" is reachable from the network; use a reverse proxy with HTTPS")
	} else {
		report.Add("bind address", output.StatusOK, bind)
	}

	report.Add("rate limit", output.StatusOK,
		fmt.Sprintf("%d requests per %s", cfg.RateLimit.Max, cfg.RateLimit.Window()))
	report.Add("agent", output.StatusOK,
		fmt.Sprintf("id %q, timeout %s", cfg.Agent.ID, cfg.Agent.TimeoutDuration()))

	if cfg.Metrics.Enabled {
		report.Add("metrics", output.StatusOK, fmt.Sprintf("prometheus on :%d", cfg.Metrics.Port))
	} else {
		report.Add("metrics", output.StatusOK, "disabled")
	}

	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Doctor finished",
			zap.Int("checks", len(report.Checks)),
			zap.Bool("healthy", report.Healthy()))
	}

	return report
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "table", "output format: table, json, yaml, markdown")
}
