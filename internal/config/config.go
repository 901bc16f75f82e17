package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stower/stower/internal/domain"
)

// Config is the top-level stower configuration.
type Config struct {
	DataDir  string                   `mapstructure:"data_dir"`
	Logging  LoggingConfig            `mapstructure:"logging"`
	Ledger   LedgerConfig             `mapstructure:"ledger"`
	Triggers map[string]TriggerConfig `mapstructure:"triggers"`
}

// LoggingConfig controls the console and rotating-file log sinks.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LedgerConfig selects the retention ledger driver. Records live under
// data_dir/<trigger> regardless of driver, so triggers never share state.
type LedgerConfig struct {
	Driver string `mapstructure:"driver"` // "file" or "sqlite"
}

// TriggerConfig defines one backup job: where the archive producer leaves
// the run's files and which storages they go to.
type TriggerConfig struct {
	BaseName string        `mapstructure:"base_name"`
	LocalDir string        `mapstructure:"local_dir"`
	Storages []StorageSpec `mapstructure:"storages"`
}

// StorageSpec configures one logical storage of a trigger.
type StorageSpec struct {
	Backend  string            `mapstructure:"backend"`
	SubID    string            `mapstructure:"sub_id"`
	Keep     int               `mapstructure:"keep"`
	Settings map[string]string `mapstructure:"settings"`
}

// Load reads the configuration from cfgFile, or from the standard search
// paths when cfgFile is empty. A .env file in the working directory is
// loaded first so settings may reference the environment.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("stower")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(userConfigDir, "stower"))
		}
	}

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "stower.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("ledger.driver", "file")

	v.SetEnvPrefix("STOWER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("ledger.driver must be file or sqlite, got %q", c.Ledger.Driver)
	}

	for name, trigger := range c.Triggers {
		if trigger.BaseName == "" {
			return fmt.Errorf("trigger %s: base_name is required", name)
		}
		if trigger.LocalDir == "" {
			return fmt.Errorf("trigger %s: local_dir is required", name)
		}
		for i, storage := range trigger.Storages {
			switch storage.Backend {
			case domain.BackendLocal, domain.BackendS3, domain.BackendSFTP:
			default:
				return fmt.Errorf("trigger %s: storages[%d]: unknown backend %q", name, i, storage.Backend)
			}
		}
	}
	return nil
}

// Trigger resolves a named trigger definition.
func (c *Config) Trigger(name string) (TriggerConfig, error) {
	trigger, ok := c.Triggers[name]
	if !ok {
		return TriggerConfig{}, fmt.Errorf("%w: %s", domain.ErrTriggerNotFound, name)
	}
	return trigger, nil
}

// LedgerDir is where a trigger's retention records live.
func (c *Config) LedgerDir(trigger string) string {
	return filepath.Join(c.DataDir, trigger)
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "stower")
	}
	return "./data"
}
