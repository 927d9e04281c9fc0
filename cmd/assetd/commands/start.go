package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/api"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the assetd server",
	Long: `Start the prefetch engine and the HTTP API in the foreground.

The server walks the catalog while the host is idle, pauses while activity
is reported, and serves on-demand loads through the API.

Examples:
  # Start with the default config
  assetd start

  # Start with a custom config file
  assetd start --config /etc/assetd/config.yaml

  # Override settings from the environment
  ASSETD_LOGGING_LEVEL=DEBUG ASSETD_SERVER_PORT=9090 assetd start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process id to this file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}

	apiServer := api.NewServer(cfg.Server, rt)
	rt.SetAPIServer(apiServer)
	logger.Info("API server configured", "port", cfg.Server.Port)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			_ = rt.Close()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- rt.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		return nil
	}
}
