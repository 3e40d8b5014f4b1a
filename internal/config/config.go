package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config keys.
// store.mongo_uri is read from CENSYSMATCH_STORE_MONGO_URI.
const EnvPrefix = "CENSYSMATCH"

// Config represents the application configuration
type Config struct {
	Store         StoreConfig  `mapstructure:"store" yaml:"store"`
	Job           JobConfig    `mapstructure:"job" yaml:"job"`
	Guard         GuardConfig  `mapstructure:"guard" yaml:"guard"`
	Log           LogConfig    `mapstructure:"log" yaml:"log"`
	Notify        NotifyConfig `mapstructure:"notify" yaml:"notify"`
	ProgressEvery int64        `mapstructure:"progress_every" yaml:"progress_every"`
}

// StoreConfig selects and locates the backing store
type StoreConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	BoltPath      string `mapstructure:"bolt_path" yaml:"bolt_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
	Timeout       string `mapstructure:"timeout" yaml:"timeout"`
}

// JobConfig names the shared job record and the dataset pointer file
type JobConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	PointerFile string `mapstructure:"pointer_file" yaml:"pointer_file"`
}

// GuardConfig names the processes checked before a run. DownloadProcess is a
// command line substring; SelfProcess is this classifier's executable name.
type GuardConfig struct {
	DownloadProcess string `mapstructure:"download_process" yaml:"download_process"`
	SelfProcess     string `mapstructure:"self_process" yaml:"self_process"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NotifyConfig controls the completion webhook
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// Supported store backends
const (
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
)

// TimeoutDuration returns the parsed store timeout
func (s StoreConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result.
// If path is empty, censysmatch.yaml is searched for in the current directory,
// ./configs and ~/.config/censysmatch/; when none exists the defaults are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("censysmatch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "censysmatch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// missing from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.bolt_path", d.Store.BoltPath)
	v.SetDefault("store.mongo_uri", d.Store.MongoURI)
	v.SetDefault("store.mongo_database", d.Store.MongoDatabase)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("job.name", d.Job.Name)
	v.SetDefault("job.pointer_file", d.Job.PointerFile)
	v.SetDefault("guard.download_process", d.Guard.DownloadProcess)
	v.SetDefault("guard.self_process", d.Guard.SelfProcess)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("notify.webhook_url", d.Notify.WebhookURL)
	v.SetDefault("progress_every", d.ProgressEvery)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendBolt:
		if c.Store.BoltPath == "" {
			errs = append(errs, errors.New("store.bolt_path cannot be empty for the bolt backend"))
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri cannot be empty for the mongo backend"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongo_database cannot be empty for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendBolt, BackendMongo, c.Store.Backend))
	}

	if d, err := time.ParseDuration(c.Store.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("store.timeout must be a positive duration, got %q", c.Store.Timeout))
	}

	if c.Job.Name == "" {
		errs = append(errs, errors.New("job.name cannot be empty"))
	}

	if c.Job.PointerFile == "" {
		errs = append(errs, errors.New("job.pointer_file cannot be empty"))
	}

	if c.Guard.DownloadProcess == "" {
		errs = append(errs, errors.New("guard.download_process cannot be empty"))
	}

	if c.Guard.SelfProcess == "" {
		errs = append(errs, errors.New("guard.self_process cannot be empty"))
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.ProgressEvery < 0 {
		errs = append(errs, errors.New("progress_every cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
