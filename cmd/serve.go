package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"n8npipe/pkg/config"
	"n8npipe/pkg/gateway"
	"n8npipe/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connector service",
	Long:  "Runs the pipe over HTTP with health and readiness endpoints and live valve reload.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		configPath, err := config.FindConfigPath()
		if err != nil {
			fmt.Printf("failed to locate config: %v\n", err)
			return
		}

		cfg, err := config.LoadConfigFile(configPath)
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		watcher, err := config.NewWatcher(configPath, svc.Reload, log)
		if err != nil {
			log.Error("Failed to initialize config watcher", "error", err)
			return
		}
		go func() {
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Config watcher stopped", "error", err)
			}
		}()

		log.Info("Connector started",
			"webhook_env", cfg.Valves.WebhookEnv,
			"timeout_seconds", cfg.Valves.TimeoutSeconds,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
