// Package config loads the gotried configuration from defaults, an
// optional TOML file, and GOTRIE_-prefixed environment variables, in
// that priority order.
package config

import (
	"fmt"
	"time"

	"github.com/LeJamon/gotrie/internal/storage/nodestore"
	"github.com/LeJamon/gotrie/internal/triedb"
)

// Config is the complete configuration of a gotried process.
type Config struct {
	// DataDir is the base directory for all on-disk state.
	DataDir string `mapstructure:"data_dir"`

	// Store configures the node store.
	Store StoreConfig `mapstructure:"store"`

	// CommitLog configures the root journal.
	CommitLog CommitLogConfig `mapstructure:"commit_log"`

	// Writers restricts mutation to the listed callers; empty admits all.
	Writers []string `mapstructure:"writers"`

	configPath string
}

// StoreConfig configures the node store backend.
type StoreConfig struct {
	Backend          string        `mapstructure:"backend"`
	Path             string        `mapstructure:"path"`
	CacheSize        int           `mapstructure:"cache_size"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	Compressor       string        `mapstructure:"compressor"`
	CompressionLevel int           `mapstructure:"compression_level"`
	VerifyWorkers    int           `mapstructure:"verify_workers"`
}

// CommitLogConfig configures the root journal.
type CommitLogConfig struct {
	// Path is the SQLite file holding the journal. Empty disables it.
	Path string `mapstructure:"path"`

	// Disabled turns the journal off even when a path is set.
	Disabled bool `mapstructure:"disabled"`
}

// ConfigPath returns the path of the file the configuration was loaded
// from, if any.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// TrieDB converts the configuration into a triedb.Config.
func (c *Config) TrieDB() *triedb.Config {
	storeCfg := nodestore.DefaultConfig()
	storeCfg.Backend = c.Store.Backend
	storeCfg.Path = c.Store.Path
	storeCfg.CacheSize = c.Store.CacheSize
	storeCfg.CacheTTL = c.Store.CacheTTL
	storeCfg.Compressor = c.Store.Compressor
	storeCfg.CompressionLevel = c.Store.CompressionLevel
	storeCfg.VerifyWorkers = c.Store.VerifyWorkers

	logPath := c.CommitLog.Path
	if c.CommitLog.Disabled {
		logPath = ""
	}

	return &triedb.Config{
		Store:         storeCfg,
		CommitLogPath: logPath,
		Writers:       c.Writers,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be specified")
	}

	storeCfg := c.TrieDB().Store
	if err := storeCfg.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if !c.CommitLog.Disabled && c.CommitLog.Path == "" {
		return fmt.Errorf("commit_log.path must be specified unless the journal is disabled")
	}

	return nil
}
