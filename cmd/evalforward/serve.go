package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zynerotech/evalforward/app"
	"github.com/zynerotech/evalforward/config"
	"github.com/zynerotech/evalforward/logger"
)

func newServeCommand(g *globalArgs) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP forwarding service",
		Long: `Starts an HTTP server with POST /api/v1/forward. Health and metrics
endpoints are started when enabled in the configuration. The log level is
reloaded when the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := loadConfig(g.loadOptions())
			if err != nil {
				return err
			}
			cfg.serveHTTP = true
			if address != "" {
				cfg.Server.Address = address
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			watchLogLevel(loader)

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Server.Start()
			}()

			return waitForSignal(cmd.Context(), errCh)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	return cmd
}

// watchLogLevel применяет logger.level и logger.components из файла конфигурации при его изменении
func watchLogLevel(loader *config.Loader) {
	path := loader.GetConfigPath()
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	loader.OnConfigChange(func() { reloadLogLevels(loader) })
	loader.WatchConfig()
}

func reloadLogLevels(loader *config.Loader) {
	level := loader.GetString("logger.level")
	if level != logger.GetLevel() {
		if err := logger.SetLevel(level); err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid log level from config")
		} else {
			logger.Info().Str("level", level).Msg("Log level reloaded")
		}
	}

	components := loader.GetStringMapString("logger.components")
	if err := logger.SetComponentLevels(components); err != nil {
		logger.Warn().Err(err).Msg("Ignoring invalid component log levels from config")
		return
	}
	for name := range components {
		logger.Info().Str("component", name).Str("level", logger.GetComponentLevel(name)).Msg("Component log level reloaded")
	}
}

// waitForSignal блокируется до SIGINT/SIGTERM или отмены ctx
func waitForSignal(ctx context.Context, errCh <-chan error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		return nil
	}
}
