package main

import (
	"encoding/json"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/stackpilot/internal/scrape"
	"github.com/mohammad-safakhou/stackpilot/provider"
)

func scrapeCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Draft a catalog entry from a tool's landing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			llm, err := provider.NewProvider(cmd.Context(), cfg.LLM, logger)
			if err != nil {
				return err
			}
			extractor, err := scrape.NewExtractor(scrape.ChromeFetcher{
				Timeout:   cfg.Scraper.Timeout,
				UserAgent: cfg.Scraper.UserAgent,
				Quality:   cfg.Scraper.Quality,
			}, llm, scrape.ExtractorOptions{Model: cfg.LLM.VisionModel, MaxChars: cfg.Scraper.MaxChars, Timeout: cfg.LLM.Timeout, Hosts: cfg.Scraper.Hosts}, prometheus.NewRegistry(), logger.Named("scrape"))
			if err != nil {
				return err
			}
			draft, err := extractor.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(draft)
		},
	}
}
