package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hakim/censysmatch/internal/config"
	"github.com/hakim/censysmatch/internal/storage"
	"github.com/spf13/cobra"
)

var (
	initForce bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and create the local store",
	Long: `Creates a default configuration file (censysmatch.yaml) and, for the bolt
backend, initializes the database file with every collection bucket.

Reference data (zones, organizations, cloud and known ranges, DNS inventory)
and the job record are expected to be written by the collection jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(initDir, "censysmatch.yaml")

		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		if err := storage.EnsureDir(initDir); err != nil {
			return fmt.Errorf("failed to create %s: %w", initDir, err)
		}

		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("Created %s with default configuration\n", configPath)

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if loaded.Store.Backend == config.BackendBolt {
			store, err := storage.NewStore(loaded.Store.BoltPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()
			fmt.Printf("Initialized database: %s\n", loaded.Store.BoltPath)
		}

		fmt.Println()
		fmt.Println("censysmatch initialized.")
		fmt.Println("Run 'censysmatch check' to see whether a run would start.")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "output directory")
	rootCmd.AddCommand(initCmd)
}
