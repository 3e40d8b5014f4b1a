package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:       BackendBolt,
			BoltPath:      "censysmatch.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "censys",
			Timeout:       "30s",
		},
		Job: JobConfig{
			Name:        "censys",
			PointerFile: "filename.txt",
		},
		Guard: GuardConfig{
			DownloadProcess: "get_censys_files",
			SelfProcess:     "censysmatch",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		ProgressEvery: 1000000,
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
