package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/linkhub/linkhub/internal/api"
	"github.com/linkhub/linkhub/internal/config"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the LinkHub server",
	Long: `Start the LinkHub server in main mode.

This command starts the HTTP server that handles provider connection
flows, data sync, and connection status queries.

Example:
  linkhub serve --config config.yaml --db ./data/linkhub.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("LINKHUB_SHUTDOWN_TIMEOUT", 0), "Shutdown timeout (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if serveFlags.Host != "" {
		app.cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		app.cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.Timeout > 0 {
		app.cfg.Server.ShutdownTimeout = serveFlags.Timeout
	}

	server := api.NewServer(app.cfg.Server, app.cfg.API, app.orch, app.metrics, app.logger)

	app.loader.SetOnChange(func(cfg *config.Config) {
		app.logger.Info("configuration reloaded", "version", cfg.Version)
	})
	if err := app.loader.StartWatcher(); err != nil {
		app.logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer app.loader.StopWatcher()

	sigCh := api.SetupSignalHandler()
	go func() {
		sig := api.WaitForSignal(sigCh)
		app.logger.Info("signal received, shutting down", "signal", sig.String())
		if err := server.Shutdown(); err != nil {
			app.logger.Error("shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info("starting LinkHub server",
		"addr", fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.HTTPPort),
		"db", globalFlags.DBPath,
		"providers", app.orch.Providers(),
	)

	return server.Run()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
