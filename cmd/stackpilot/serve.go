package main

import (
	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/stackpilot/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cmd.Context(), cfg, logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
