package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hakim/censysmatch/internal/config"
	"github.com/hakim/censysmatch/internal/logging"
	"github.com/hakim/censysmatch/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "censysmatch",
	Short: "Classify Censys scan records against the organization's assets",
	Long: `censysmatch reads the latest Censys IPv4 dataset line by line, keeps the
records whose certificate names one of the organization's SSL organizations or
whose address lies in a confirmed range, tags them with zones, cloud provider
and DNS names, and replaces the stored result set.

It is meant to run from cron after the download job. Invocations while the
download is still running, while another instance is active, or before the
dataset is marked DOWNLOADED exit quietly with status 0.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "init" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log = logging.New(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	RunE: runJob,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: censysmatch.yaml in . , ./configs or ~/.config/censysmatch)")

	rootCmd.Version = "0.1.0-dev"
}

// openStore connects to the configured backend
func openStore(ctx context.Context) (storage.Backend, error) {
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
