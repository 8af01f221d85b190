package nodestore

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration options for the node store.
type Config struct {
	// Backend specifies the storage backend to use
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Path specifies the file system path for data storage
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Cache configuration
	CacheSize int           `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// Compression configuration
	Compressor       string `json:"compressor" yaml:"compressor" mapstructure:"compressor"`
	CompressionLevel int    `json:"compression_level" yaml:"compression_level" mapstructure:"compression_level"`

	// VerifyWorkers bounds the concurrency of store verification
	VerifyWorkers int `json:"verify_workers" yaml:"verify_workers" mapstructure:"verify_workers"`

	// CreateIfMissing controls whether Open creates the on-disk state
	CreateIfMissing bool `json:"create_if_missing" yaml:"create_if_missing" mapstructure:"create_if_missing"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:          "pebble",
		Path:             "./nodestore",
		CacheSize:        4096,
		CacheTTL:         time.Hour,
		Compressor:       "lz4",
		CompressionLevel: 1,
		VerifyWorkers:    4,
		CreateIfMissing:  true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend must be specified")
	}

	if c.Path == "" && c.Backend != "memory" {
		return errors.New("path must be specified")
	}

	if c.CacheSize < 0 {
		return errors.New("cache_size must be non-negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must be non-negative")
	}

	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return errors.New("compression_level must be between 0 and 9")
	}

	if c.VerifyWorkers < 1 {
		return errors.New("verify_workers must be at least 1")
	}

	switch c.Compressor {
	case "lz4", "none":
	default:
		return fmt.Errorf("unsupported compressor: %s", c.Compressor)
	}

	return nil
}

// Option is a functional option for configuring the node store.
type Option func(*Config)

// WithPath sets the storage path.
func WithPath(path string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

// WithBackend sets the storage backend.
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithCacheSize sets the cache size (number of items).
func WithCacheSize(size int) Option {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// WithCacheTTL sets the cache time-to-live duration.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

// WithCompression sets the compression algorithm and level.
func WithCompression(compressor string, level int) Option {
	return func(c *Config) {
		c.Compressor = compressor
		c.CompressionLevel = level
	}
}

// WithVerifyWorkers sets the verification concurrency bound.
func WithVerifyWorkers(workers int) Option {
	return func(c *Config) {
		c.VerifyWorkers = workers
	}
}

// WithCreateIfMissing controls whether Open creates missing on-disk state.
func WithCreateIfMissing(create bool) Option {
	return func(c *Config) {
		c.CreateIfMissing = create
	}
}

// ApplyOptions applies the given options to the config.
func (c *Config) ApplyOptions(options ...Option) {
	for _, option := range options {
		option(c)
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf(`NodeStore Configuration:
  Backend: %s
  Path: %s
  Cache: %d items, TTL: %v
  Compression: %s (level %d)
  Verify Workers: %d
  Create If Missing: %t`,
		c.Backend,
		c.Path,
		c.CacheSize, c.CacheTTL,
		c.Compressor, c.CompressionLevel,
		c.VerifyWorkers,
		c.CreateIfMissing)
}
