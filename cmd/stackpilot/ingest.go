package main

import (
	"encoding/json"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/stackpilot/internal/feeds"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Import configured RSS feeds once",
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

			importer, err := feeds.NewImporter(st, feeds.ImporterOptions{
				URLs:      cfg.Feeds.URLs,
				MaxItems:  cfg.Feeds.MaxItems,
				Timeout:   cfg.Feeds.Timeout,
				UserAgent: cfg.Scraper.UserAgent,
			}, prometheus.NewRegistry(), logger.Named("feeds"))
			if err != nil {
				return err
			}
			stats, err := importer.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
