package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load builds the configuration in priority order:
//  1. Built-in defaults
//  2. The TOML file at configPath, when given
//  3. Environment variables with the GOTRIE_ prefix
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("GOTRIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDataDir(&cfg)
	cfg.configPath = configPath

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadDefault builds the configuration without a file.
func LoadDefault() (*Config, error) {
	return Load("")
}

// setDefaults registers the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())

	v.SetDefault("store.backend", "pebble")
	v.SetDefault("store.path", "")
	v.SetDefault("store.cache_size", 4096)
	v.SetDefault("store.cache_ttl", time.Hour)
	v.SetDefault("store.compressor", "lz4")
	v.SetDefault("store.compression_level", 1)
	v.SetDefault("store.verify_workers", 4)

	v.SetDefault("commit_log.path", "")
	v.SetDefault("commit_log.disabled", false)

	v.SetDefault("writers", []string{})
}

// applyDataDir fills the store and journal paths from data_dir when they
// were not set explicitly.
func applyDataDir(cfg *Config) {
	if cfg.Store.Path == "" && cfg.Store.Backend != "memory" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, "nodestore")
	}
	if cfg.CommitLog.Path == "" && !cfg.CommitLog.Disabled {
		cfg.CommitLog.Path = filepath.Join(cfg.DataDir, "commits.db")
	}
}

// defaultDataDir returns the default base directory for on-disk state.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./gotrie-data"
	}
	return filepath.Join(home, ".gotrie")
}
