package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/internal/logging"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "stackpilot",
		Short:         "AI tool directory and workflow recommender",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(
		serveCMD(&cfgPath),
		migrateCMD(&cfgPath),
		ingestCMD(&cfgPath),
		scrapeCMD(&cfgPath),
		adminCMD(&cfgPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup loads the config and builds the process logger.
func setup(cfgPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.General)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
