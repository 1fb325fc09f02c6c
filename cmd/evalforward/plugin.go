package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/zynerotech/evalforward/app"
)

func newPluginCommand(g *globalArgs) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Serve the forwarder as a net/rpc plugin",
		Long: `Listens on 127.0.0.1:<port> and serves Plugin.CallMethod with the
"Forward" method. Args of the call are the forwarder input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(g.loadOptions())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Plugin.Port = port
			}
			if cfg.Plugin.Port == 0 {
				return errors.New("missing --port (or plugin.port)")
			}
			cfg.servePlugin = true

			application, err := app.NewBuilder(cfg).
				WithLogger().
				WithMetrics().
				WithHealthcheck().
				WithForwarder().
				WithPlugin().
				Build()
			if err != nil {
				return err
			}
			defer application.Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.PluginServer.Serve()
			}()

			return waitForSignal(cmd.Context(), errCh)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port for the RPC server (required unless plugin.port is set)")
	return cmd
}
