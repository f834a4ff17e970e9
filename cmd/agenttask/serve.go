package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Little-Star888/agenttask/internal/api"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.ListenAddr
			if listen != "" {
				addr = listen
			}
			a.logger.Info("agenttask: starting",
				"listen_addr", addr,
				"store", a.cfg.Store,
				"run_timeout", a.cfg.RunTimeout.String(),
			)

			srv := api.NewServer(addr, a.store, a.registry, a.runner, a.logger)
			if err := srv.Run(); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides AGENTTASK_LISTEN_ADDR)")
	return cmd
}
