package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/stackpilot/internal/server"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

func adminCMD(cfgPath *string) *cobra.Command {
	var admin = &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var email, password string
	var create = &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.NewWithDSN(cmd.Context(), cfg.Storage.Postgres.DSN(), cfg.Storage.Postgres.Timeout)
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := server.CreateAdmin(cmd.Context(), st, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "admin email")
	create.Flags().StringVar(&password, "password", "", "admin password (min 8 characters)")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	admin.AddCommand(create)
	return admin
}
