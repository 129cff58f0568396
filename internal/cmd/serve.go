package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/core/identity"
	"github.com/agentbridge/agentbridge/internal/core/ratelimit"
	errwrap "github.com/agentbridge/agentbridge/internal/errors"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/observability"
	"github.com/agentbridge/agentbridge/internal/server"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge HTTP server",
	Long: `Start the bridge HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Logged; configuration changes need a restart

The bridge refuses to start without API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			if stderrors.Is(err, config.ErrMissingAPIKey) {
				ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid,
					"API_KEY environment variable is required",
					errwrap.WrapConfigInvalid(cmd.Context(), err, "missing shared secret"))
			}
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration",
				errwrap.WrapConfigInvalid(cmd.Context(), err, "config validation failed"))
		}

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, map[string]any{
			"agent": cfg.Agent.ID,
		})
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		} else {
			observability.DisableMetrics()
		}
		metrics.SetServerStartTime(time.Now().Unix())

		logger.Info("Initializing bridge",
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("cli_command", cfg.Agent.CLICommand),
			zap.Int("agent_timeout_seconds", cfg.Agent.Timeout),
			zap.Int("rate_limit_max", cfg.RateLimit.Max),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window()),
			zap.Int("max_message_length", cfg.Limits.MaxMessageLength),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		if isWildcardHost(cfg.Server.Host) {
			logger.Warn("Binding to all interfaces; put the bridge behind a reverse proxy with HTTPS",
				zap.String("host", cfg.Server.Host))
		}

		hasher := identity.NewHasher(cfg.Auth.APIKey)
		limiter := ratelimit.NewFixedWindow(ratelimit.Window{
			MaxRequests: cfg.RateLimit.Max,
			Duration:    cfg.RateLimit.Window(),
		}, hasher.Hash)

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		sweepDone := make(chan struct{})
		go func() {
			defer close(sweepDone)
			limiter.Run(sweepCtx, cfg.RateLimit.SweepInterval, func(removed, remaining int) {
				metrics.SetRateLimitEntries(remaining)
				if removed > 0 {
					logger.Debug("Rate limit sweep",
						zap.Int("removed", removed),
						zap.Int("remaining", remaining))
				}
			})
		}()

		srv := server.New(cfg, server.Options{Limiter: limiter})

		// Shutdown handlers run in LIFO order.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopSweep()
			<-sweepDone
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: configuration is read at startup, restart to apply changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			stopSweep()
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func isWildcardHost(host string) bool {
	switch host {
	case "0.0.0.0", "::", "[::]", "":
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "127.0.0.1", "bind address (env BIND_HOST)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 18790, "listen port (env PORT)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
