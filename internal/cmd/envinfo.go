package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. The shared secret is never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== agentbridge Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info("")

		cfg, err := config.Decode(viper.GetViper())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		secret := "(not set)"
		if cfg.Auth.APIKey != "" {
			secret = "(set)"
		}

		log.Info("Configuration:")
		log.Info("  Bind:           " + fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  API Key:        " + secret)
		log.Info("  Agent:          " + cfg.Agent.ID)
		log.Info("  CLI Command:    " + cfg.Agent.CLICommand)
		log.Info("  Agent Timeout:  " + cfg.Agent.TimeoutDuration().String())
		log.Info("  Write Timeout:  " + cfg.Server.WriteTimeout.String())
		log.Info(fmt.Sprintf("  Rate Limit:     %d per %s", cfg.RateLimit.Max, cfg.RateLimit.Window()))
		log.Info(fmt.Sprintf("  Max Message:    %d chars", cfg.Limits.MaxMessageLength))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("  Config File:    " + configFileLabel())
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func configFileLabel() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if path := config.DefaultConfigPath(); path != "" {
		return path + " (not present)"
	}
	return "(none)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
